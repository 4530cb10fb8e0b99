package platform

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// 平台调用的错误分类，调用方只关心这三类：
// 没权限（会触发 ban_ability 降级）、找不到、其它 API 拒绝
var (
	ErrForbidden = errors.New("platform: forbidden")
	ErrNotFound  = errors.New("platform: not found")
	ErrAPI       = errors.New("platform: api rejected the request")
)

// PostInfo 是平台侧的帖子元数据快照
type PostInfo struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Body            string    `json:"body"`
	Author          string    `json:"author"` // 为空表示作者已自删
	Community       string    `json:"community"`
	CreatedAt       time.Time `json:"created_at"`
	IsSelf          bool      `json:"is_self"`
	OriginalContent bool      `json:"original_content"`
	PostFlair       string    `json:"post_flair"`
	AuthorFlair     string    `json:"author_flair"`
	AuthorFlairCSS  string    `json:"author_flair_css"`
	SpamFiltered    bool      `json:"spam_filtered"`
	RemovedBy       string    `json:"removed_by"` // 移除者账号名，未移除为空
}

// PolicyDocument 社区策略文档原文及修订信息
type PolicyDocument struct {
	Content   string `json:"content"`
	Revision  string `json:"revision"`
	RevisedBy string `json:"revised_by"`
}

// Message 站内信（运营者命令通过这里进来）
type Message struct {
	ID         string `json:"id"`
	Author     string `json:"author"`
	Subject    string `json:"subject"`
	Body       string `json:"body"`
	WasComment bool   `json:"was_comment"`
}

type Rule struct {
	ShortName   string `json:"short_name"`
	Description string `json:"description"`
}

type ReplyOptions struct {
	Distinguish bool `json:"distinguish"`
	Approve     bool `json:"approve"`
	LockThread  bool `json:"lock_thread"`
	Sticky      bool `json:"sticky"`
}

// BanRequest DurationDays 为 0 表示永久
type BanRequest struct {
	Community    string `json:"community"`
	Author       string `json:"author"`
	Note         string `json:"note"`
	Message      string `json:"message"`
	DurationDays int    `json:"duration_days"`
}

// Client 是平台网关的访问接口，真正的社交平台在网关后面
type Client interface {
	FetchPost(ctx context.Context, id string) (*PostInfo, error)
	FetchNewPosts(ctx context.Context, limit int) ([]*PostInfo, error)
	FetchSpamPosts(ctx context.Context, community string) ([]*PostInfo, error)
	FetchModerators(ctx context.Context, community string) ([]string, error)
	FetchPolicyDocument(ctx context.Context, community string) (*PolicyDocument, error)
	FetchRules(ctx context.Context, community string) ([]Rule, error)

	Reply(ctx context.Context, postID, body string, opts ReplyOptions) error
	RemovePost(ctx context.Context, postID string) error
	ApprovePost(ctx context.Context, postID string) error
	ReportPost(ctx context.Context, postID, reason string) error

	SendModmail(ctx context.Context, community, subject, body string) error
	SendMessage(ctx context.Context, recipient, subject, body string) error

	Ban(ctx context.Context, req *BanRequest) error
	Unban(ctx context.Context, community, author string) error

	FetchUnreadMessages(ctx context.Context, limit int) ([]*Message, error)
	MarkRead(ctx context.Context, messageID string) error
}

var client Client

func InitPlatform() {
	client = newHTTPClient()
}

// SetClient 注入其它实现（测试用）
func SetClient(c Client) {
	client = c
}

func Get() Client {
	return client
}
