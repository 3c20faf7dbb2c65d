package ticket

import "fmt"

// Source identifies which channel produced a ticket. Immutable after creation.
type Source string

const (
	SourceEmail   Source = "EMAIL"
	SourceDiscord Source = "DISCORD"
	SourceGitHub  Source = "GITHUB"
	SourceForm    Source = "FORM"
	SourceWebhook Source = "WEBHOOK"
)

// Content is the normalised representation of a source channel's payload.
// Every variant exposes the same capability set so the queue manager and
// the classifier collaborator can treat a ticket's content uniformly
// regardless of where it came from.
type Content interface {
	// Type returns the source channel this variant belongs to. SMS content
	// reports SourceWebhook; its wire discriminator (ToMap's "type") is "SMS".
	Type() Source
	// RawContent returns the original unstructured body the channel delivered.
	RawContent() string
	// Sender returns a human-readable origin (address, username, submitter...).
	Sender() string
	// ExtractBody returns the best-effort plain-text body for classification.
	ExtractBody() string
	// ExtractAttachments returns attachment identifiers/URLs, if any.
	ExtractAttachments() []string
	// ToMap renders the variant as its wire form, tagged with "type".
	ToMap() map[string]any
}

// EmailContent is the normalised shape of an inbound email.
type EmailContent struct {
	From     string            `json:"from"`
	To       []string          `json:"to"`
	Subject  string            `json:"subject"`
	Body     string            `json:"body"`
	ThreadID string            `json:"thread_id,omitempty"`
	Headers  map[string]string `json:"headers,omitempty"`
	Attach   []string          `json:"attachments,omitempty"`
}

func (c *EmailContent) Type() Source                 { return SourceEmail }
func (c *EmailContent) RawContent() string           { return c.Body }
func (c *EmailContent) Sender() string               { return c.From }
func (c *EmailContent) ExtractBody() string          { return c.Subject + "\n" + c.Body }
func (c *EmailContent) ExtractAttachments() []string { return c.Attach }
func (c *EmailContent) ToMap() map[string]any {
	return map[string]any{
		"type":        string(SourceEmail),
		"from":        c.From,
		"to":          c.To,
		"subject":     c.Subject,
		"body":        c.Body,
		"thread_id":   c.ThreadID,
		"headers":     c.Headers,
		"attachments": c.Attach,
	}
}

// DiscordContent is the normalised shape of a chat message (Discord, Slack, ...).
type DiscordContent struct {
	ChannelID string   `json:"channel_id"`
	UserID    string   `json:"user_id"`
	MessageID string   `json:"message_id"`
	Text      string   `json:"text"`
	Username  string   `json:"username"`
	GuildID   string   `json:"guild_id,omitempty"`
	Attach    []string `json:"attachments,omitempty"`
}

func (c *DiscordContent) Type() Source                 { return SourceDiscord }
func (c *DiscordContent) RawContent() string           { return c.Text }
func (c *DiscordContent) Sender() string               { return c.Username }
func (c *DiscordContent) ExtractBody() string          { return c.Text }
func (c *DiscordContent) ExtractAttachments() []string { return c.Attach }
func (c *DiscordContent) ToMap() map[string]any {
	return map[string]any{
		"type":        string(SourceDiscord),
		"channel_id":  c.ChannelID,
		"user_id":     c.UserID,
		"message_id":  c.MessageID,
		"text":        c.Text,
		"username":    c.Username,
		"guild_id":    c.GuildID,
		"attachments": c.Attach,
	}
}

// GitHubContent is the normalised shape of an issue-tracker event.
type GitHubContent struct {
	Repo    string   `json:"repo"`
	Number  int      `json:"issue_number"`
	Author  string   `json:"author"`
	Title   string   `json:"title"`
	Body    string   `json:"body"`
	Labels  []string `json:"labels,omitempty"`
	URL     string   `json:"url"`
}

func (c *GitHubContent) Type() Source                 { return SourceGitHub }
func (c *GitHubContent) RawContent() string           { return c.Body }
func (c *GitHubContent) Sender() string               { return c.Author }
func (c *GitHubContent) ExtractBody() string          { return c.Title + "\n" + c.Body }
func (c *GitHubContent) ExtractAttachments() []string { return nil }
func (c *GitHubContent) ToMap() map[string]any {
	return map[string]any{
		"type":         string(SourceGitHub),
		"repo":         c.Repo,
		"issue_number": c.Number,
		"author":       c.Author,
		"title":        c.Title,
		"body":         c.Body,
		"labels":       c.Labels,
		"url":          c.URL,
	}
}

// FormContent is the normalised shape of a web-form submission.
type FormContent struct {
	Fields         map[string]string `json:"fields"`
	FormID         string            `json:"form_id"`
	SubmitterEmail string            `json:"submitter_email,omitempty"`
	SubmitterName  string            `json:"submitter_name,omitempty"`
}

func (c *FormContent) Type() Source       { return SourceForm }
func (c *FormContent) RawContent() string { return fmt.Sprintf("%v", c.Fields) }
func (c *FormContent) Sender() string {
	if c.SubmitterEmail != "" {
		return c.SubmitterEmail
	}
	return c.SubmitterName
}
func (c *FormContent) ExtractBody() string {
	if body, ok := c.Fields["message"]; ok {
		return body
	}
	if body, ok := c.Fields["description"]; ok {
		return body
	}
	return c.RawContent()
}
func (c *FormContent) ExtractAttachments() []string { return nil }
func (c *FormContent) ToMap() map[string]any {
	return map[string]any{
		"type":            string(SourceForm),
		"fields":          c.Fields,
		"form_id":         c.FormID,
		"submitter_email": c.SubmitterEmail,
		"submitter_name":  c.SubmitterName,
	}
}

// SMSContent is the normalised shape of an inbound SMS.
type SMSContent struct {
	From             string `json:"from"`
	To               string `json:"to"`
	Body             string `json:"body"`
	CarrierMessageID string `json:"carrier_message_id,omitempty"`
}

func (c *SMSContent) Type() Source                 { return SourceWebhook }
func (c *SMSContent) RawContent() string           { return c.Body }
func (c *SMSContent) Sender() string               { return c.From }
func (c *SMSContent) ExtractBody() string          { return c.Body }
func (c *SMSContent) ExtractAttachments() []string { return nil }
func (c *SMSContent) ToMap() map[string]any {
	return map[string]any{
		"type":               "SMS",
		"from":               c.From,
		"to":                 c.To,
		"body":               c.Body,
		"carrier_message_id": c.CarrierMessageID,
	}
}

// ErrUnknownContentType is returned by ContentFromMap when the "type"
// discriminator does not match a known variant. Unknown discriminators
// must fail loudly rather than silently produce a zero-value content.
type ErrUnknownContentType struct {
	Type string
}

func (e *ErrUnknownContentType) Error() string {
	return fmt.Sprintf("ticket: unknown content type %q", e.Type)
}

// ContentFromMap dispatches on the "type" field (case-insensitive) to
// build the concrete content variant.
func ContentFromMap(m map[string]any) (Content, error) {
	raw, _ := m["type"].(string)
	switch normalizeType(raw) {
	case "email":
		return &EmailContent{
			From:     str(m["from"]),
			To:       strSlice(m["to"]),
			Subject:  str(m["subject"]),
			Body:     str(m["body"]),
			ThreadID: str(m["thread_id"]),
			Headers:  strMap(m["headers"]),
			Attach:   strSlice(m["attachments"]),
		}, nil
	case "discord", "chat":
		return &DiscordContent{
			ChannelID: str(m["channel_id"]),
			UserID:    str(m["user_id"]),
			MessageID: str(m["message_id"]),
			Text:      str(m["text"]),
			Username:  str(m["username"]),
			GuildID:   str(m["guild_id"]),
			Attach:    strSlice(m["attachments"]),
		}, nil
	case "github", "issue":
		return &GitHubContent{
			Repo:   str(m["repo"]),
			Number: intVal(m["issue_number"]),
			Author: str(m["author"]),
			Title:  str(m["title"]),
			Body:   str(m["body"]),
			Labels: strSlice(m["labels"]),
			URL:    str(m["url"]),
		}, nil
	case "form":
		return &FormContent{
			Fields:         strMap(m["fields"]),
			FormID:         str(m["form_id"]),
			SubmitterEmail: str(m["submitter_email"]),
			SubmitterName:  str(m["submitter_name"]),
		}, nil
	case "sms":
		return &SMSContent{
			From:             str(m["from"]),
			To:               str(m["to"]),
			Body:             str(m["body"]),
			CarrierMessageID: str(m["carrier_message_id"]),
		}, nil
	default:
		return nil, &ErrUnknownContentType{Type: raw}
	}
}

func normalizeType(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		out = append(out, c)
	}
	return string(out)
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

func intVal(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case float64:
		return int(n)
	default:
		return 0
	}
}

func strSlice(v any) []string {
	raw, ok := v.([]any)
	if !ok {
		if ss, ok := v.([]string); ok {
			return ss
		}
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, e := range raw {
		out = append(out, str(e))
	}
	return out
}

func strMap(v any) map[string]string {
	raw, ok := v.(map[string]any)
	if !ok {
		if sm, ok := v.(map[string]string); ok {
			return sm
		}
		return nil
	}
	out := make(map[string]string, len(raw))
	for k, e := range raw {
		out[k] = str(e)
	}
	return out
}
