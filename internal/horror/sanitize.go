package horror

import "regexp"

var (
	emojiPattern    = regexp.MustCompile(`[\x{1F600}-\x{1F6FF}\x{1F300}-\x{1F5FF}\x{1F680}-\x{1F6FF}\x{1F900}-\x{1F9FF}]`)
	markdownPattern = regexp.MustCompile("[`*{}\\[\\]#]")
	urlPattern      = regexp.MustCompile(`https?://\S+`)
)

// Sanitize prepares text for speech: emoji and markdown punctuation are
// removed and URLs are replaced by the word "link". Whitespace is kept as is.
func Sanitize(text string) string {
	text = emojiPattern.ReplaceAllString(text, "")
	text = markdownPattern.ReplaceAllString(text, "")
	return urlPattern.ReplaceAllString(text, "link")
}
