package vertex_test

import (
	"context"
	"io"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/spool/pkg/llm"
	"github.com/papercomputeco/spool/pkg/llm/provider/endpoint"
	"github.com/papercomputeco/spool/pkg/llm/provider/vertex"
)

var _ = Describe("Vertex NewRequest", func() {
	access := llm.Access{
		Vendor:  "vertex",
		APIKey:  "ya29.token",
		Options: map[string]string{"project": "acme", "region": "europe-west1"},
	}

	It("targets the regional publisher endpoint", func() {
		req, err := vertex.NewRequest(context.Background(), access,
			llm.GenerateRequest{Model: "claude-sonnet-4-5@20250929", Body: []byte(`{"model":"claude-sonnet-4-5","max_tokens":16,"messages":[]}`)})
		Expect(err).NotTo(HaveOccurred())
		Expect(req.URL.String()).To(Equal("https://europe-west1-aiplatform.googleapis.com/v1/projects/acme/locations/europe-west1/publishers/anthropic/models/claude-sonnet-4-5@20250929:streamRawPredict"))
		Expect(req.Header.Get("Authorization")).To(Equal("Bearer ya29.token"))

		body, err := io.ReadAll(req.Body)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(body)).To(MatchJSON(`{"anthropic_version":"vertex-2023-10-16","max_tokens":16,"messages":[],"stream":true}`))
	})

	It("uses the global host for the global region", func() {
		global := llm.Access{Options: map[string]string{"project": "acme", "region": "global"}}
		req, err := vertex.NewRequest(context.Background(), global, llm.GenerateRequest{Model: "claude-opus-4-1"})
		Expect(err).NotTo(HaveOccurred())
		Expect(req.URL.Host).To(Equal("aiplatform.googleapis.com"))
	})

	It("requires a project", func() {
		_, err := vertex.NewRequest(context.Background(), llm.Access{}, llm.GenerateRequest{Model: "claude-opus-4-1"})
		Expect(err).To(MatchError(endpoint.ErrMissingOption))
	})
})
