package entity

const ContentStatusPublished = "published"

// ContentItem is a plain immutable snapshot of the content being sent,
// fetched once per operation to decouple dispatch from the content store.
type ContentItem struct {
	ID           uint64
	Title        string
	EmailSubject string
	Html         string
	Plaintext    string
	Status       string
}

func (c ContentItem) IsPublished() bool {
	return c.Status == ContentStatusPublished
}

// SubjectLine falls back from the email-subject override to the title.
func (c ContentItem) SubjectLine() string {
	if c.EmailSubject != "" {
		return c.EmailSubject
	}
	if c.Title != "" {
		return c.Title
	}
	return "New post"
}

func (c ContentItem) HtmlBody() string {
	if c.Html != "" {
		return c.Html
	}
	title := c.Title
	if title == "" {
		title = "New post"
	}
	return "<h1>" + title + "</h1>"
}

func (c ContentItem) TextBody() string {
	if c.Plaintext != "" {
		return c.Plaintext
	}
	if c.Title != "" {
		return c.Title
	}
	return "New post"
}
