package workers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Asterisk-tech/moderatelyhelpfulbot/dao/mysql"
	mhb "github.com/Asterisk-tech/moderatelyhelpfulbot/errors"
	"github.com/Asterisk-tech/moderatelyhelpfulbot/internal/utils"
	"github.com/Asterisk-tech/moderatelyhelpfulbot/logger"
	"github.com/Asterisk-tech/moderatelyhelpfulbot/logic"
	"github.com/Asterisk-tech/moderatelyhelpfulbot/platform"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// PumpMessagesOnce 拉一轮未读站内信，运营者命令在这里进来。
// 每封信处理完都标记已读，重复投递由 ActionedItem 幂等键兜住
func PumpMessagesOnce() error {
	ctx, cancel := context.WithTimeout(context.Background(),
		time.Duration(viper.GetInt64("platform.timeout"))*time.Second)
	defer cancel()

	limit := viper.GetInt("service.messages.inbox_limit")
	msgs, err := platform.Get().FetchUnreadMessages(ctx, limit)
	if err != nil {
		return errors.Wrap(err, "workers:PumpMessagesOnce: fetch unread")
	}

	for _, msg := range msgs {
		handleInboxMessage(msg)
		mctx, mcancel := context.WithTimeout(context.Background(),
			time.Duration(viper.GetInt64("platform.timeout"))*time.Second)
		if err := platform.Get().MarkRead(mctx, msg.ID); err != nil {
			logger.Warnf("workers:PumpMessagesOnce: mark read %s: %v", msg.ID, err)
		}
		mcancel()
	}
	return nil
}

func handleInboxMessage(msg *platform.Message) {
	actionKey := "msg-" + msg.ID
	done, err := mysql.CheckActioned(actionKey)
	if err != nil {
		logger.ErrorWithStack(err)
		return
	}
	if done {
		return
	}
	defer func() {
		if err := mysql.RecordActioned(actionKey); err != nil {
			logger.ErrorWithStack(err)
		}
	}()

	if ignorableMessage(msg) {
		return
	}

	community := utils.NormalizeCommunityName(strings.TrimSpace(msg.Subject))
	command, params := parseCommandLine(msg.Body)
	if command == "" {
		return
	}

	reply, internal, err := logic.HandleCommand(community, msg.Author, command, params)
	if err != nil {
		switch {
		case errors.Is(err, mhb.ErrNotAuthorized):
			reply = "You do not have permission to do this. Only moderators of the community may use commands."
		case errors.Is(err, mhb.ErrMissingArg):
			reply = err.Error() // wrap 信息就是用法提示
		case errors.Is(err, mhb.ErrUnknownCmd):
			// reply 里已经是用法说明
		default:
			logger.Errorf("workers:handleInboxMessage: command %q from %s: %v", command, msg.Author, err)
			reply = "Something went wrong while handling that command. The error has been logged."
		}
	}
	if reply == "" {
		return
	}

	sendReply(msg.Author, "Re: "+msg.Subject, reply+viper.GetString("server.response_tail"))

	// 给拥有者抄送一份命令记录，方便事后排查
	owner := viper.GetString("server.owner")
	if !internal && owner != "" && !strings.EqualFold(msg.Author, owner) {
		record := fmt.Sprintf("Command `%s` by /u/%s in /r/%s:\n\n%s", command, msg.Author, community, reply)
		sendReply(owner, "Command executed", record)
	}
}

// ignorableMessage 过滤平台自动通知，这些不是命令
func ignorableMessage(msg *platform.Message) bool {
	if msg.WasComment || msg.Author == "" {
		return true
	}
	subject := strings.ToLower(msg.Subject)
	for _, marker := range []string{
		"username mention",
		"moderator added",
		"you've been approved",
		"invitation to moderate",
	} {
		if strings.Contains(subject, marker) {
			return true
		}
	}
	return false
}

// parseCommandLine 取正文第一个非空行，按空白切分成命令和参数
func parseCommandLine(body string) (string, []string) {
	for _, line := range strings.Split(body, "\n") {
		fields := strings.Fields(strings.TrimSpace(line))
		if len(fields) == 0 {
			continue
		}
		return fields[0], fields[1:]
	}
	return "", nil
}

func sendReply(recipient, subject, body string) {
	ctx, cancel := context.WithTimeout(context.Background(),
		time.Duration(viper.GetInt64("platform.timeout"))*time.Second)
	defer cancel()
	if err := platform.Get().SendMessage(ctx, recipient, subject, body); err != nil {
		logger.Warnf("workers:sendReply: to %s: %v", recipient, err)
	}
}
