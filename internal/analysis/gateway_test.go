package analysis

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"
)

var _ = Describe("Gateway", func() {
	var (
		fakeGateway *ghttp.Server
		gateway     *Gateway
		prompt      *Prompt
		cfg         GatewayConfig
		imageURL    string
		result      *Analysis
		err         error
	)

	BeforeEach(func() {
		fakeGateway = ghttp.NewServer()

		var promptErr error
		prompt, promptErr = NewPrompt("en", false)
		Expect(promptErr).NotTo(HaveOccurred())

		cfg = GatewayConfig{URL: fakeGateway.URL() + "/v1/messages"}
		imageURL = "data:image/jpeg;base64,aGVsbG8="
	})

	AfterEach(func() {
		fakeGateway.Close()
	})

	JustBeforeEach(func() {
		var newErr error
		gateway, newErr = NewGateway(cfg, prompt)
		Expect(newErr).NotTo(HaveOccurred())
		result, err = gateway.Analyze(context.Background(), imageURL)
	})

	When("the gateway returns a well-formed reply", func() {
		var body map[string]any

		BeforeEach(func() {
			fakeGateway.AppendHandlers(ghttp.CombineHandlers(
				ghttp.VerifyRequest("POST", "/v1/messages"),
				ghttp.VerifyContentType("application/json"),
				func(w http.ResponseWriter, r *http.Request) {
					raw, readErr := io.ReadAll(r.Body)
					Expect(readErr).NotTo(HaveOccurred())
					Expect(json.Unmarshal(raw, &body)).To(Succeed())
				},
				ghttp.RespondWithJSONEncoded(http.StatusOK, map[string]any{
					"content": []map[string]any{
						{"type": "text", "text": `{"name": "Burger", "calories": 550, "protein": 25, "carbs": 40, "fat": 30, "confidence": 80, "tips": "Skip the soda"}`},
					},
				}),
			))
		})

		It("should not return an error", func() {
			Expect(err).NotTo(HaveOccurred())
		})

		It("should return the parsed analysis", func() {
			Expect(result).To(Equal(&Analysis{
				Name:       "Burger",
				Calories:   550,
				Protein:    25,
				Carbs:      40,
				Fat:        30,
				Confidence: 80,
				Tips:       "Skip the soda",
			}))
		})

		It("should send the default model and token limit", func() {
			Expect(body["model"]).To(Equal(defaultGatewayModel))
			Expect(body["max_tokens"]).To(BeNumerically("==", 1024))
		})

		It("should send the image without the data URL prefix followed by the prompt", func() {
			messages := body["messages"].([]any)
			Expect(messages).To(HaveLen(1))
			message := messages[0].(map[string]any)
			Expect(message["role"]).To(Equal("user"))

			content := message["content"].([]any)
			Expect(content).To(HaveLen(2))

			image := content[0].(map[string]any)
			Expect(image["type"]).To(Equal("image"))
			Expect(image["source"]).To(Equal(map[string]any{
				"type":       "base64",
				"media_type": "image/jpeg",
				"data":       "aGVsbG8=",
			}))

			text := content[1].(map[string]any)
			Expect(text["type"]).To(Equal("text"))
			Expect(text["text"]).To(Equal(prompt.Text()))
		})
	})

	When("an API key is configured", func() {
		BeforeEach(func() {
			cfg.APIKey = "secret"
			fakeGateway.AppendHandlers(ghttp.CombineHandlers(
				ghttp.VerifyHeaderKV("x-api-key", "secret"),
				ghttp.RespondWithJSONEncoded(http.StatusOK, map[string]any{
					"content": []map[string]any{{"text": `{"name": "Tea", "calories": 2, "protein": 0, "carbs": 0, "fat": 0, "confidence": 95}`}},
				}),
			))
		})

		It("should send the key header", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Name).To(Equal("Tea"))
		})
	})

	When("the gateway returns a non-2xx status", func() {
		BeforeEach(func() {
			fakeGateway.AppendHandlers(ghttp.RespondWith(http.StatusBadGateway, "upstream down"))
		})

		It("returns ErrRequestFailed", func() {
			Expect(err).To(MatchError(ErrRequestFailed))
			Expect(result).To(BeNil())
		})

		It("is not classified as a parse error", func() {
			Expect(IsParseError(err)).To(BeFalse())
		})
	})

	When("the reply text contains no JSON object", func() {
		BeforeEach(func() {
			fakeGateway.AppendHandlers(ghttp.RespondWithJSONEncoded(http.StatusOK, map[string]any{
				"content": []map[string]any{{"text": "Sorry, I can't help with that."}},
			}))
		})

		It("returns ErrNoJSON", func() {
			Expect(err).To(MatchError(ErrNoJSON))
		})
	})

	When("the reply has no content", func() {
		BeforeEach(func() {
			fakeGateway.AppendHandlers(ghttp.RespondWithJSONEncoded(http.StatusOK, map[string]any{}))
		})

		It("returns ErrNoJSON", func() {
			Expect(err).To(MatchError(ErrNoJSON))
		})
	})

	When("the image is not a data URL", func() {
		BeforeEach(func() {
			imageURL = "not-a-data-url"
		})

		It("returns ErrInvalidDataURL without calling the gateway", func() {
			Expect(err).To(MatchError(ErrInvalidDataURL))
			Expect(fakeGateway.ReceivedRequests()).To(BeEmpty())
		})
	})

	When("no endpoint is configured", func() {
		BeforeEach(func() {
			cfg.URL = ""
		})

		It("returns ErrRequestFailed", func() {
			Expect(err).To(MatchError(ErrRequestFailed))
		})
	})
})

var _ = Describe("NewGateway", func() {
	It("requires a prompt", func() {
		_, err := NewGateway(GatewayConfig{URL: "http://example.com"}, nil)
		Expect(err).To(HaveOccurred())
	})
})
