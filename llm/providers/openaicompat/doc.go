// Package openaicompat implements llm.Provider over the OpenAI Chat
// Completions API and any service that speaks the same wire format.
//
// Usage:
//
//	p := openaicompat.New(openaicompat.Config{
//	    ProviderName: "openai",
//	    APIKey:       cfg.APIKey,
//	    BaseURL:      "https://api.openai.com",
//	    DefaultModel: "gpt-4o",
//	    Retry:        retry.DefaultRetryPolicy(),
//	}, logger)
package openaicompat
