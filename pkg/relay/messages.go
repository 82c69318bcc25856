package relay

// User-facing replies are a fixed table: raw internal errors never reach the
// end user.
const (
	// MsgAccessDenied is sent when the role gate rejects the user.
	MsgAccessDenied = "Access denied. Only certain roles can chat with me right now — more access is coming soon."

	// MsgUnsupportedType is sent for attachments outside the allow-list.
	MsgUnsupportedType = "Unsupported file type detected. Please upload one of the supported formats:\n" +
		"Documents: .pdf, .docx, .xlsx, .txt, .rtf\n" +
		"Images: .png, .jpg, .jpeg, .gif, .webp"

	// MsgDownloadFailed is sent when an attachment could not be fetched.
	MsgDownloadFailed = "Attachment download failed. Please try again."

	// MsgUploadFailed is sent when an image could not be stored at the backend.
	MsgUploadFailed = "Image upload failed. Please try again."

	// MsgNoReadableContent is sent when a document yields no text.
	MsgNoReadableContent = "No readable content found in the file."

	// MsgEmptyMessage is sent when neither text nor usable attachments arrived.
	MsgEmptyMessage = "Please send a message, an image, or a supported file."

	// MsgBackendUnavailable is the generic try-again reply for backend and
	// storage failures.
	MsgBackendUnavailable = "Your message could not be processed. Please try again later."

	// MsgNoReply is sent when a run completes without an assistant message.
	MsgNoReply = "No response from the assistant."
)

// SplitMessage splits text into chunks of at most max runes, preserving
// order, for platforms with a hard message length limit.
func SplitMessage(text string, max int) []string {
	if max <= 0 || text == "" {
		return []string{text}
	}

	runes := []rune(text)
	chunks := make([]string, 0, (len(runes)+max-1)/max)
	for start := 0; start < len(runes); start += max {
		end := start + max
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks
}
