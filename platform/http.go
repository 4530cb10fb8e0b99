package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
	ratelimit "go.uber.org/ratelimit"
)

// httpClient 通过 HTTP 网关访问平台，所有出站调用过同一个漏桶限流，
// 避免触发平台侧限流
type httpClient struct {
	base    string
	token   string
	http    *retryablehttp.Client
	limiter ratelimit.Limiter
}

func newHTTPClient() *httpClient {
	rc := retryablehttp.NewClient()
	rc.RetryMax = viper.GetInt("platform.retry_max")
	rc.HTTPClient.Timeout = time.Duration(viper.GetInt64("platform.timeout")) * time.Second
	rc.Logger = nil // 用 zap，不用 retryablehttp 自带的

	return &httpClient{
		base:    viper.GetString("platform.base_url"),
		token:   viper.GetString("platform.token"),
		http:    rc,
		limiter: ratelimit.New(viper.GetInt("platform.rate_per_second")),
	}
}

func (c *httpClient) do(ctx context.Context, method, path string, in, out any) error {
	c.limiter.Take()

	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return errors.Wrap(err, "platform:do: marshal request")
		}
		body = bytes.NewReader(buf)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return errors.Wrap(err, "platform:do: build request")
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(ErrAPI, "platform:do: %s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusForbidden:
		return errors.Wrapf(ErrForbidden, "%s %s", method, path)
	case resp.StatusCode == http.StatusNotFound:
		return errors.Wrapf(ErrNotFound, "%s %s", method, path)
	case resp.StatusCode >= 400:
		return errors.Wrapf(ErrAPI, "%s %s: status %d", method, path, resp.StatusCode)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return errors.Wrap(err, "platform:do: decode response")
		}
	}
	return nil
}

func (c *httpClient) FetchPost(ctx context.Context, id string) (*PostInfo, error) {
	post := new(PostInfo)
	err := c.do(ctx, http.MethodGet, "/api/v1/posts/"+url.PathEscape(id), nil, post)
	if err != nil {
		return nil, err
	}
	return post, nil
}

func (c *httpClient) FetchNewPosts(ctx context.Context, limit int) ([]*PostInfo, error) {
	posts := make([]*PostInfo, 0, limit)
	path := fmt.Sprintf("/api/v1/posts/new?limit=%d", limit)
	err := c.do(ctx, http.MethodGet, path, nil, &posts)
	return posts, err
}

func (c *httpClient) FetchSpamPosts(ctx context.Context, community string) ([]*PostInfo, error) {
	posts := make([]*PostInfo, 0)
	path := fmt.Sprintf("/api/v1/communities/%s/spam", url.PathEscape(community))
	err := c.do(ctx, http.MethodGet, path, nil, &posts)
	return posts, err
}

func (c *httpClient) FetchModerators(ctx context.Context, community string) ([]string, error) {
	mods := make([]string, 0)
	path := fmt.Sprintf("/api/v1/communities/%s/moderators", url.PathEscape(community))
	err := c.do(ctx, http.MethodGet, path, nil, &mods)
	return mods, err
}

func (c *httpClient) FetchPolicyDocument(ctx context.Context, community string) (*PolicyDocument, error) {
	doc := new(PolicyDocument)
	path := fmt.Sprintf("/api/v1/communities/%s/policy", url.PathEscape(community))
	if err := c.do(ctx, http.MethodGet, path, nil, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func (c *httpClient) FetchRules(ctx context.Context, community string) ([]Rule, error) {
	rules := make([]Rule, 0)
	path := fmt.Sprintf("/api/v1/communities/%s/rules", url.PathEscape(community))
	err := c.do(ctx, http.MethodGet, path, nil, &rules)
	return rules, err
}

func (c *httpClient) Reply(ctx context.Context, postID, body string, opts ReplyOptions) error {
	req := struct {
		Body string `json:"body"`
		ReplyOptions
	}{Body: body, ReplyOptions: opts}
	return c.do(ctx, http.MethodPost, "/api/v1/posts/"+url.PathEscape(postID)+"/reply", &req, nil)
}

func (c *httpClient) RemovePost(ctx context.Context, postID string) error {
	return c.do(ctx, http.MethodPost, "/api/v1/posts/"+url.PathEscape(postID)+"/remove", nil, nil)
}

func (c *httpClient) ApprovePost(ctx context.Context, postID string) error {
	return c.do(ctx, http.MethodPost, "/api/v1/posts/"+url.PathEscape(postID)+"/approve", nil, nil)
}

func (c *httpClient) ReportPost(ctx context.Context, postID, reason string) error {
	req := struct {
		Reason string `json:"reason"`
	}{Reason: reason}
	return c.do(ctx, http.MethodPost, "/api/v1/posts/"+url.PathEscape(postID)+"/report", &req, nil)
}

func (c *httpClient) SendModmail(ctx context.Context, community, subject, body string) error {
	req := struct {
		Subject string `json:"subject"`
		Body    string `json:"body"`
	}{Subject: subject, Body: body}
	path := fmt.Sprintf("/api/v1/communities/%s/modmail", url.PathEscape(community))
	return c.do(ctx, http.MethodPost, path, &req, nil)
}

func (c *httpClient) SendMessage(ctx context.Context, recipient, subject, body string) error {
	req := struct {
		Recipient string `json:"recipient"`
		Subject   string `json:"subject"`
		Body      string `json:"body"`
	}{Recipient: recipient, Subject: subject, Body: body}
	return c.do(ctx, http.MethodPost, "/api/v1/messages", &req, nil)
}

func (c *httpClient) Ban(ctx context.Context, req *BanRequest) error {
	path := fmt.Sprintf("/api/v1/communities/%s/bans", url.PathEscape(req.Community))
	return c.do(ctx, http.MethodPost, path, req, nil)
}

func (c *httpClient) Unban(ctx context.Context, community, author string) error {
	path := fmt.Sprintf("/api/v1/communities/%s/bans/%s", url.PathEscape(community), url.PathEscape(author))
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

func (c *httpClient) FetchUnreadMessages(ctx context.Context, limit int) ([]*Message, error) {
	msgs := make([]*Message, 0, limit)
	path := fmt.Sprintf("/api/v1/messages/unread?limit=%d", limit)
	err := c.do(ctx, http.MethodGet, path, nil, &msgs)
	return msgs, err
}

func (c *httpClient) MarkRead(ctx context.Context, messageID string) error {
	return c.do(ctx, http.MethodPost, "/api/v1/messages/"+url.PathEscape(messageID)+"/read", nil, nil)
}
