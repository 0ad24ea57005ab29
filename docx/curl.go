package docx

import (
	"fmt"
	"net/url"
	"strings"
)

type CurlGenerator struct {
	BaseURL string
}

func NewCurlGenerator(baseURL string) *CurlGenerator {
	return &CurlGenerator{
		BaseURL: strings.TrimRight(baseURL, "/"),
	}
}

// GenerateCurl renders a curl command for endpoint. Query parameters use
// their examples; required ones without an example get a placeholder.
func (g *CurlGenerator) GenerateCurl(base string, endpoint *Endpoint) string {
	var buf strings.Builder

	buf.WriteString("curl")
	buf.WriteString(fmt.Sprintf(" -X %s", endpoint.Method))

	query := url.Values{}
	for _, p := range endpoint.QueryParams {
		switch {
		case p.Example != "":
			query.Set(p.Name, p.Example)
		case p.Required:
			query.Set(p.Name, "<"+strings.ToUpper(p.Name)+">")
		}
	}
	fullPath := g.BaseURL + base + endpoint.Path
	if len(query) > 0 {
		fullPath += "?" + query.Encode()
	}
	buf.WriteString(fmt.Sprintf(" %q", fullPath))

	if endpoint.Auth == Bearer {
		buf.WriteString(` -H "Authorization: Bearer <TOKEN>"`)
	}
	return buf.String()
}

// GenerateAllCurls renders every endpoint of router, keyed by "METHOD path".
func (g *CurlGenerator) GenerateAllCurls(router *RouterDoc) map[string]string {
	results := make(map[string]string, len(router.Endpoints))
	for _, endpoint := range router.Endpoints {
		key := string(endpoint.Method) + " " + router.BasePath + endpoint.Path
		results[key] = g.GenerateCurl(router.BasePath, endpoint)
	}
	return results
}
