package logic

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/Asterisk-tech/moderatelyhelpfulbot/dao/localcache"
	"github.com/Asterisk-tech/moderatelyhelpfulbot/dao/mysql"
	"github.com/Asterisk-tech/moderatelyhelpfulbot/logger"
	"github.com/Asterisk-tech/moderatelyhelpfulbot/models"
	"github.com/Asterisk-tech/moderatelyhelpfulbot/platform"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// setupTest 起一个 sqlite 内存库和假平台网关，每个测试独立
func setupTest(t *testing.T) *fakeClient {
	t.Helper()

	viper.Set("server.bot_name", "ModeratelyHelpfulBot")
	viper.Set("server.owner", "mhb_admin")
	viper.Set("server.response_tail", "")
	viper.Set("platform.timeout", 5)
	viper.Set("localcache.size", 64)
	viper.Set("service.sweep.scan_cap", 20)
	viper.Set("service.policy.revalidate_interval", 86400)
	viper.Set("service.policy.load_timeout", 5)
	viper.Set("logger.path", fmt.Sprintf("%s/test.log", t.TempDir()))
	logger.InitLogger()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	mysql.InitWithDB(db)

	localcache.InitLocalCache()

	fake := newFakeClient()
	platform.SetClient(fake)
	return fake
}

type sentMessage struct {
	Recipient string
	Subject   string
	Body      string
}

type sentReply struct {
	PostID string
	Body   string
	Opts   platform.ReplyOptions
}

// fakeClient 记录所有出站调用，按需注入错误
type fakeClient struct {
	mu sync.Mutex

	posts      map[string]*platform.PostInfo
	fetchCount map[string]int

	moderators []string
	policyDoc  *platform.PolicyDocument
	policyErr  error
	rules      []platform.Rule
	unread     []*platform.Message

	removeErr error
	banErr    error

	replies    []sentReply
	removed    []string
	approved   []string
	reported   []string
	modmails   []sentMessage
	messages   []sentMessage
	bans       []*platform.BanRequest
	unbans     []string
	markedRead []string
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		posts:      make(map[string]*platform.PostInfo),
		fetchCount: make(map[string]int),
		moderators: []string{"mod1", "mod2"},
	}
}

func (f *fakeClient) addPost(info *platform.PostInfo) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.posts[info.ID] = info
}

func (f *fakeClient) FetchPost(ctx context.Context, id string) (*platform.PostInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetchCount[id]++
	if info, ok := f.posts[id]; ok {
		return info, nil
	}
	// 没有预置的帖子按"还活着"处理
	return &platform.PostInfo{ID: id, Author: "someone"}, nil
}

func (f *fakeClient) FetchNewPosts(ctx context.Context, limit int) ([]*platform.PostInfo, error) {
	return nil, nil
}

func (f *fakeClient) FetchSpamPosts(ctx context.Context, community string) ([]*platform.PostInfo, error) {
	return nil, nil
}

func (f *fakeClient) FetchModerators(ctx context.Context, community string) ([]string, error) {
	return f.moderators, nil
}

func (f *fakeClient) FetchPolicyDocument(ctx context.Context, community string) (*platform.PolicyDocument, error) {
	if f.policyErr != nil {
		return nil, f.policyErr
	}
	if f.policyDoc != nil {
		return f.policyDoc, nil
	}
	return nil, platform.ErrNotFound
}

func (f *fakeClient) FetchRules(ctx context.Context, community string) ([]platform.Rule, error) {
	return f.rules, nil
}

func (f *fakeClient) Reply(ctx context.Context, postID, body string, opts platform.ReplyOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies = append(f.replies, sentReply{PostID: postID, Body: body, Opts: opts})
	return nil
}

func (f *fakeClient) RemovePost(ctx context.Context, postID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.removeErr != nil {
		return f.removeErr
	}
	f.removed = append(f.removed, postID)
	return nil
}

func (f *fakeClient) ApprovePost(ctx context.Context, postID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.approved = append(f.approved, postID)
	return nil
}

func (f *fakeClient) ReportPost(ctx context.Context, postID, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reported = append(f.reported, postID+": "+reason)
	return nil
}

func (f *fakeClient) SendModmail(ctx context.Context, community, subject, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.modmails = append(f.modmails, sentMessage{Recipient: community, Subject: subject, Body: body})
	return nil
}

func (f *fakeClient) SendMessage(ctx context.Context, recipient, subject, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, sentMessage{Recipient: recipient, Subject: subject, Body: body})
	return nil
}

func (f *fakeClient) Ban(ctx context.Context, req *platform.BanRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.banErr != nil {
		return f.banErr
	}
	f.bans = append(f.bans, req)
	return nil
}

func (f *fakeClient) Unban(ctx context.Context, community, author string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unbans = append(f.unbans, community+"/"+author)
	return nil
}

func (f *fakeClient) FetchUnreadMessages(ctx context.Context, limit int) ([]*platform.Message, error) {
	return f.unread, nil
}

func (f *fakeClient) MarkRead(ctx context.Context, messageID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.markedRead = append(f.markedRead, messageID)
	return nil
}

// testCommunity 一个不走加载流程、直接可用的社区
func testCommunity(t *testing.T, name string, policy models.Policy) *models.TrackedCommunity {
	t.Helper()
	community := &models.TrackedCommunity{
		CommunityName:       name,
		BanAbility:          models.BanAbilityUnknown,
		MaxCountPerInterval: policy.MaxCountPerInterval,
		MinPostIntervalMins: int(policy.MinPostInterval.Minutes()),
		Policy:              policy,
		Moderators:          []string{"mod1", "mod2"},
	}
	require.NoError(t, mysql.SaveCommunity(nil, community))
	return community
}
