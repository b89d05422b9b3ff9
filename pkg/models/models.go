package models

// Wire models for the Travelo backend API. JSON tags follow the backend
// contract exactly; the comment payload uses snake_case timestamps and
// nests the author under "user".

// User roles as the backend reports them
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// User represents the authenticated account as returned by GET /auth/me
type User struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	CreatedAt string `json:"created_at,omitempty"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

// IsAdmin reports whether the user carries the admin role
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// TokenPair is the response of POST /auth/login. The refresh token is
// optional; the backend may choose not to issue one.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken,omitempty"`
}

// CommentAuthor is the author summary embedded in each comment
type CommentAuthor struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

// Comment represents a single comment on an article
type Comment struct {
	ID        int64         `json:"id"`
	Content   string        `json:"content"`
	CreatedAt string        `json:"created_at"`
	UpdatedAt string        `json:"updated_at"`
	Author    CommentAuthor `json:"user"`
}

// CommentPage is one page of GET /articles/:id/comments
type CommentPage struct {
	Comments []Comment `json:"comments"`
	Total    int       `json:"total"`
}

// MessageResponse is the generic {message} body returned by the
// registration and password-recovery endpoints
type MessageResponse struct {
	Message string `json:"message"`
}

// Credentials is the POST /auth/login request body
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Registration is the POST /auth/register request body
type Registration struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}
