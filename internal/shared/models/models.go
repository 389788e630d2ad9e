package models

// GenerationRequest is the JSON body of POST /generateImages. Pointer fields
// tell an omitted value apart from a zero one. An explicit null is rejected
// during parsing rather than read as omitted.
type GenerationRequest struct {
	Prompt     *string  `json:"prompt"`
	UserAPIKey *string  `json:"userAPIKey,omitempty"`
	Width      *float64 `json:"width,omitempty"`
	Height     *float64 `json:"height,omitempty"`
	Steps      *float64 `json:"steps,omitempty"`
	ImageStyle *string  `json:"imageStyle,omitempty"`
}

// GenerationParams is a validated and normalized GenerationRequest.
// Width and Height are multiples of 16 in [16,1440], Steps is in [1,10].
type GenerationParams struct {
	Prompt string
	APIKey string
	Width  int
	Height int
	Steps  int
}

// HasUserKey reports whether the caller brought their own credential.
func (p GenerationParams) HasUserKey() bool {
	return p.APIKey != ""
}

// ImageStyles are the style presets offered to callers.
var ImageStyles = []string{
	"no preference in style",
	"pop art",
	"pixel art",
	"cartoon",
	"cyberpunk",
	"anime",
	"photorealism",
	"comics",
	"illustration",
	"watercolor",
	"oil painting",
	"papercraft",
	"marker illustration",
	"risograph",
	"high key",
	"low key",
	"bokeh",
	"golden hour",
}
