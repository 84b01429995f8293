package cleaner

import (
	"strings"
	"testing"
)

func TestRenderJSONLD_Recipe(t *testing.T) {
	html := `<html><head>
<script type="application/ld+json">
{
  "@context": "https://schema.org/",
  "@type": "Recipe",
  "name": "Chocolate Chip Cookies",
  "recipeIngredient": ["2 cups flour", "1 cup sugar", "1 cup chocolate chips"],
  "recipeInstructions": [{"@type": "HowToStep", "text": "Preheat oven to 375°F."}],
  "prepTime": "PT20M",
  "aggregateRating": {"ratingValue": "4.8", "ratingCount": "1234"}
}
</script>
</head><body><p>ignored body copy</p></body></html>`

	md, ok := RenderJSONLD(html)
	if !ok {
		t.Fatal("expected RenderJSONLD to match the Recipe block")
	}

	for _, want := range []string{
		"# Chocolate Chip Cookies",
		"2 cups flour",
		"Preheat oven",
		"20 min",
		"4.8",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("rendered markdown missing %q:\n%s", want, md)
		}
	}
}

func TestRenderJSONLD_NoSupportedType(t *testing.T) {
	html := `<html><head>
<script type="application/ld+json">
{"@context": "https://schema.org/", "@type": "WebSite", "name": "Example"}
</script>
</head><body></body></html>`

	if _, ok := RenderJSONLD(html); ok {
		t.Error("expected no match for an unsupported @type")
	}
}

func TestRenderJSONLD_GraphWrapped(t *testing.T) {
	html := `<html><head>
<script type="application/ld+json">
{"@context": "https://schema.org/", "@graph": [
  {"@type": "WebSite", "name": "Example"},
  {"@type": "FAQPage", "mainEntity": [
    {"@type": "Question", "name": "Is this a test?", "acceptedAnswer": {"@type": "Answer", "text": "Yes."}}
  ]}
]}
</script>
</head><body></body></html>`

	md, ok := RenderJSONLD(html)
	if !ok {
		t.Fatal("expected RenderJSONLD to find the FAQPage inside @graph")
	}
	if !strings.Contains(md, "Is this a test?") || !strings.Contains(md, "Yes.") {
		t.Errorf("rendered markdown missing FAQ content:\n%s", md)
	}
}
