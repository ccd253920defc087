package types

import "time"

// Event kinds broadcast to connected clients.
const (
	EventConnected  = "connected"
	EventMessage    = "message"
	EventNavigate   = "browser_navigate"
	EventExtraction = "extraction_result"
	EventComplete   = "complete"
	EventError      = "error"
)

// RoleAssistant is the role attached to server-generated chat messages.
const RoleAssistant = "assistant"

// Event is the unit carried by the broadcast bus. Type is always set;
// the remaining fields are populated per kind and omitted otherwise.
type Event struct {
	Type    string            `json:"type"`
	Message *ChatMessage      `json:"message,omitempty"`
	URL     string            `json:"url,omitempty"`
	Data    *ExtractionResult `json:"data,omitempty"`
	Error   string            `json:"error,omitempty"`
}

// ChatMessage is the chat payload of a message event.
type ChatMessage struct {
	Role    string        `json:"role"`
	Content []ContentPart `json:"content"`
}

// ContentPart is a single block of chat content.
type ContentPart struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Connected builds the per-connection handshake event.
func Connected(message string) Event {
	return Event{Type: EventConnected, Message: textMessage(message)}
}

// Assistant builds a broadcast chat message with role=assistant.
func Assistant(text string) Event {
	return Event{Type: EventMessage, Message: textMessage(text)}
}

// Navigate builds a browser navigation event.
func Navigate(url string) Event {
	return Event{Type: EventNavigate, URL: url}
}

// Extraction builds an extraction result event.
func Extraction(data *ExtractionResult) Event {
	return Event{Type: EventExtraction, Data: data}
}

// Complete builds the terminal success event.
func Complete() Event {
	return Event{Type: EventComplete}
}

// Error builds the terminal error event.
func Error(message string) Event {
	return Event{Type: EventError, Error: message}
}

// Terminal reports whether the event ends a dispatch sequence.
func (e Event) Terminal() bool {
	return e.Type == EventComplete || e.Type == EventError
}

func textMessage(text string) *ChatMessage {
	return &ChatMessage{
		Role:    RoleAssistant,
		Content: []ContentPart{{Type: "text", Text: text}},
	}
}

// Link is an extracted anchor.
type Link struct {
	Text string `json:"text"`
	Href string `json:"href"`
}

// Image is an extracted image reference.
type Image struct {
	Alt string `json:"alt"`
	Src string `json:"src"`
}

// ExtractionResult holds the output of the extraction strategies.
// A field is present only when its strategy fired for the instruction.
type ExtractionResult struct {
	Title       string       `json:"title,omitempty"`
	AllHeadings []string     `json:"allHeadings,omitempty"`
	Links       []Link       `json:"links,omitempty"`
	Images      []Image      `json:"images,omitempty"`
	Tables      [][][]string `json:"tables,omitempty"`
	Paragraphs  []string     `json:"paragraphs,omitempty"`
	Lists       [][]string   `json:"lists,omitempty"`
	AIAnalysis  string       `json:"aiAnalysis,omitempty"`

	URL       string    `json:"url"`
	Timestamp time.Time `json:"timestamp"`
}

// Empty reports whether no structural strategy populated the result.
// The AI fallback fires on empty results.
func (r *ExtractionResult) Empty() bool {
	return r.Title == "" &&
		len(r.AllHeadings) == 0 &&
		len(r.Links) == 0 &&
		len(r.Images) == 0 &&
		len(r.Tables) == 0 &&
		len(r.Paragraphs) == 0 &&
		len(r.Lists) == 0
}
