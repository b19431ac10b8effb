package entities

// ForumPost is a community question or discussion
type ForumPost struct {
	Base
	Title       string `json:"title"`
	Content     string `json:"content"`
	Category    string `json:"category,omitempty"`
	AuthorName  string `json:"author_name,omitempty"`
	IsAnonymous bool   `json:"is_anonymous"`
	ReplyCount  int    `json:"reply_count"`
	Likes       int    `json:"likes"`
}

// ForumReply answers a forum post
type ForumReply struct {
	Base
	PostID           string `json:"post_id"`
	Content          string `json:"content"`
	AuthorName       string `json:"author_name,omitempty"`
	IsDoctorResponse bool   `json:"is_doctor_response"`
}

// Article is editorial health content
type Article struct {
	Base
	Title     string   `json:"title"`
	Content   string   `json:"content"`
	Category  string   `json:"category,omitempty"`
	Tags      []string `json:"tags,omitempty"`
	AuthorID  string   `json:"author_id,omitempty"`
	Published bool     `json:"published"`
}
