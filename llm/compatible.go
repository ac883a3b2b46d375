// OpenAI-compatible vendors.
//
// Groq and DeepSeek expose the Chat Completions API at their own base URL,
// so both reuse OpenAIProvider with a different endpoint.

package llm

const (
	groqBaseURL     = "https://api.groq.com/openai/v1"
	deepseekBaseURL = "https://api.deepseek.com/v1"
)

// NewGroqProvider creates a provider for Groq-hosted models.
func NewGroqProvider(apiKey, model string, maxTokens uint32, temperature float32) *OpenAIProvider {
	return newCompatibleProvider("groq", groqBaseURL, apiKey, model, maxTokens, temperature)
}

// NewDeepSeekProvider creates a provider for DeepSeek models.
func NewDeepSeekProvider(apiKey, model string, maxTokens uint32, temperature float32) *OpenAIProvider {
	return newCompatibleProvider("deepseek", deepseekBaseURL, apiKey, model, maxTokens, temperature)
}
