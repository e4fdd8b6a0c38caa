package scanning

import (
	"context"
	"encoding/json"
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"
)

// chatCompletion wraps content the way the chat completions API does
func chatCompletion(content string) map[string]any {
	return map[string]any{
		"id": "chatcmpl-test",
		"choices": []any{
			map[string]any{
				"index":   0,
				"message": map[string]any{"role": "assistant", "content": content},
			},
		},
	}
}

var _ = Describe("BuildChatRequest", func() {
	It("builds a single user message with text and image parts", func() {
		req := BuildChatRequest("", "extract please", "QUJD")

		Expect(req.Model).To(Equal(DefaultOpenAIModel))
		Expect(req.Messages).To(HaveLen(1))
		Expect(req.Messages[0].Role).To(Equal("user"))
		Expect(req.Messages[0].Content).To(HaveLen(2))
		Expect(req.Messages[0].Content[0].Text).To(Equal("extract please"))
		Expect(req.Messages[0].Content[1].ImageURL.URL).To(Equal("data:image/jpeg;base64,QUJD"))
		Expect(req.ResponseFormat.Type).To(Equal("json_object"))
	})

	It("serializes to the chat completions wire format", func() {
		data, err := json.Marshal(BuildChatRequest("gpt-4o-mini", "p", "QUJD"))
		Expect(err).NotTo(HaveOccurred())
		Expect(data).To(MatchJSON(`{
			"model": "gpt-4o-mini",
			"messages": [{
				"role": "user",
				"content": [
					{"type": "text", "text": "p"},
					{"type": "image_url", "image_url": {"url": "data:image/jpeg;base64,QUJD"}}
				]
			}],
			"response_format": {"type": "json_object"}
		}`))
	})
})

var _ = Describe("OpenAI", func() {
	var (
		server  *ghttp.Server
		scanner *OpenAI
		fields  Fields
		err     error
	)

	BeforeEach(func() {
		server = ghttp.NewServer()
		var newErr error
		scanner, newErr = NewOpenAI(server.URL()+"/v1/chat/completions", "sk-test", "gpt-4o", 0)
		Expect(newErr).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		server.Close()
	})

	JustBeforeEach(func() {
		fields, err = scanner.Scan(context.Background(), "extract", "QUJD")
	})

	When("the model returns a JSON object", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.CombineHandlers(
				ghttp.VerifyRequest(http.MethodPost, "/v1/chat/completions"),
				ghttp.VerifyHeaderKV("Authorization", "Bearer sk-test"),
				ghttp.VerifyContentType("application/json"),
				ghttp.VerifyJSONRepresenting(BuildChatRequest("gpt-4o", "extract", "QUJD")),
				ghttp.RespondWithJSONEncoded(http.StatusOK, chatCompletion(`{"totalAmount": "42.50", "currency": "USD"}`)),
			))
		})

		It("should not return an error", func() {
			Expect(err).NotTo(HaveOccurred())
		})

		It("returns the parsed fields", func() {
			v, ok := fields.Get("totalAmount")
			Expect(ok).To(BeTrue())
			Expect(string(v)).To(Equal(`"42.50"`))
			v, ok = fields.Get("currency")
			Expect(ok).To(BeTrue())
			Expect(string(v)).To(Equal(`"USD"`))
		})
	})

	When("the model reply needs repair", func() {
		BeforeEach(func() {
			server.AppendHandlers(
				ghttp.RespondWithJSONEncoded(http.StatusOK, chatCompletion(`{"date": "01-01-2024",}`)),
			)
		})

		It("repairs and parses it", func() {
			Expect(err).NotTo(HaveOccurred())
			v, _ := fields.Get("date")
			Expect(string(v)).To(Equal(`"01-01-2024"`))
		})
	})

	When("the service fails", func() {
		BeforeEach(func() {
			server.AppendHandlers(
				ghttp.RespondWith(http.StatusInternalServerError, `{"error": "overloaded"}`),
			)
		})

		It("returns a service error with the raw body", func() {
			Expect(err).To(MatchError(ErrService))
			Expect(err.Error()).To(ContainSubstring("overloaded"))
		})
	})

	When("the model reply is not JSON", func() {
		BeforeEach(func() {
			server.AppendHandlers(
				ghttp.RespondWithJSONEncoded(http.StatusOK, chatCompletion("I could not read this receipt")),
			)
		})

		It("returns a malformed response error with the raw body", func() {
			Expect(err).To(MatchError(ErrMalformedResponse))
			Expect(err.Error()).To(ContainSubstring("chatcmpl-test"))
		})
	})
})

var _ = Describe("NewOpenAI", func() {
	It("requires an API key", func() {
		_, err := NewOpenAI("", "", "", 0)
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("Ollama", func() {
	var (
		server  *ghttp.Server
		scanner *Ollama
		fields  Fields
		err     error
	)

	BeforeEach(func() {
		server = ghttp.NewServer()
		var newErr error
		scanner, newErr = NewOllama(server.URL(), "llava", 0)
		Expect(newErr).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		server.Close()
	})

	JustBeforeEach(func() {
		fields, err = scanner.Scan(context.Background(), "extract", "QUJD")
	})

	When("the model returns a JSON object", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.CombineHandlers(
				ghttp.VerifyRequest(http.MethodPost, "/api/chat"),
				ghttp.VerifyJSONRepresenting(ollamaChatRequest{
					Model:  "llava",
					Format: "json",
					Messages: []ollamaMessage{
						{Role: "user", Content: "extract", Images: []string{"QUJD"}},
					},
				}),
				ghttp.RespondWithJSONEncoded(http.StatusOK, ollamaChatResponse{
					Message: ollamaMessage{Role: "assistant", Content: "```json\n{\"currency\": \"EUR\"}\n```"},
					Done:    true,
				}),
			))
		})

		It("returns the parsed fields", func() {
			Expect(err).NotTo(HaveOccurred())
			v, ok := fields.Get("currency")
			Expect(ok).To(BeTrue())
			Expect(string(v)).To(Equal(`"EUR"`))
		})
	})

	When("the service fails", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.RespondWith(http.StatusBadGateway, "model not loaded"))
		})

		It("returns a service error", func() {
			Expect(err).To(MatchError(ErrService))
			Expect(err.Error()).To(ContainSubstring("model not loaded"))
		})
	})
})
