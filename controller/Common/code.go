package controller

type Code uint

const (
	CodeSuccess Code = iota + 1000
	CodeInternalErr
	CodeServerBusy
	CodeInvalidParam
	CodeInvalidToken

	CodeNoSuchCommunity
	CodeConfigError
	CodeNoSuchAuthor
)

var codeMsgMap = map[Code]string{
	CodeSuccess:      "成功",
	CodeInternalErr:  "服务繁忙",
	CodeServerBusy:   "触发限流",
	CodeInvalidParam: "无效参数",
	CodeInvalidToken: "无效 Token",

	CodeNoSuchCommunity: "没有该社区",
	CodeConfigError:     "社区策略配置有误",
	CodeNoSuchAuthor:    "没有该作者",
}

func (c Code) getMsg() string {
	msg, ok := codeMsgMap[c]
	if !ok {
		return "无效错误码"
	}
	return msg
}
