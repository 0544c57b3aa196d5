package classroom

const (
	// DefaultTitle is used when a post carries no text
	DefaultTitle = "Untitled Post"
	// DefaultAuthor is used when a post names no author
	DefaultAuthor = "Unknown Author"
	// DefaultDate is used when a post has no date
	DefaultDate = "Unknown Date"
)

// Post is one observation from the portal. Posts are values and are never
// modified after parsing.
type Post struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	Author    string   `json:"author"`
	Date      string   `json:"date"`
	URL       string   `json:"url"`
	PhotoURLs []string `json:"photo_urls"`
}

// HasPhotos reports whether the post has at least one photo
func (p Post) HasPhotos() bool {
	return len(p.PhotoURLs) > 0
}
