package catalog

// Preconfigured server codes. These are defined in code, not stored per user
// beyond an enable flag and the cached tool list.
const (
	PreconfiguredSequentialThinking = "sequentialthinking"
	PreconfiguredFetch              = "fetch"
)

var preconfiguredURLs = map[string]string{
	PreconfiguredSequentialThinking: "https://remote.mcpservers.org/sequentialthinking/mcp",
	PreconfiguredFetch:              "https://remote.mcpservers.org/fetch/mcp",
}

// Some upstream servers publish tools without a description; fall back to a
// known one so the model is not handed a bare name.
var preconfiguredDescriptions = map[string]string{
	PreconfiguredFetch: "Fetch a URL and extract its contents as markdown",
}

// PreconfiguredURL returns the fixed endpoint for a built-in server code.
func PreconfiguredURL(code string) (string, bool) {
	url, ok := preconfiguredURLs[code]
	return url, ok
}

// PreconfiguredCodes lists the built-in server codes in stable order.
func PreconfiguredCodes() []string {
	return []string{PreconfiguredSequentialThinking, PreconfiguredFetch}
}
