package extract

// DefaultProfile is used when a request does not name one.
const DefaultProfile = "ml-n3"

// anyInLine matches one character other than a line terminator, so
// captures never run across lines.
const anyInLine = `[^\r\n\x{2028}\x{2029}]`

// Patterns shared by the built-in profiles.
const (
	patImageXL       = `--image-background-xl: url\("(` + anyInLine + `*?)"\)`
	patImageMD       = `--image-background-md: url\("(` + anyInLine + `*?)"\)`
	patImageSM       = `--image-background-sm: url\("(` + anyInLine + `*?)"\)`
	patHeaderBg      = `--header-background-color: (` + anyInLine + `*?);`
	patHeaderBorder  = `--header-border-bottom: (` + anyInLine + `*?);`
	patModalList     = `<ol class="ml-n3">([\s\S]*?)</ol>`
	patModalBody     = `<div class="modal-body">([\s\S]*?)</div>`
	patPromoCookie   = `document\.cookie = 'promo=(` + anyInLine + `*?); expires=`
	patTitle         = `<title>(` + anyInLine + `*?)</title>`
	patMetaDesc      = `<meta name="description" content="(` + anyInLine + `*?)"`
	patButtonHref    = `<a\s+class=["']btn btn-main["']\s+href=["']([^"']+)["']`
	patButtonText    = `<a\s+class=["']btn btn-main["'][^>]*>\s*<span>(` + anyInLine + `*?)</span>\s*</a>`
	patPromoTextImg  = `<img\s+[^>]*src=["']([^"']+)["'][^>]*class=["'][^"']*promo-text[^"']*["'][^>]*alt=["']([^"']+)["']`
	defaultHeaderHex = "#000000"
)

func init() {
	Register(Profile{
		Name:        "ml-n3",
		Description: "Landing pages with an ml-n3 terms list and header color variables",
		Merge:       MergeProjected,
		Rules: []Rule{
			{Field: "image_background_xl", Pattern: patImageXL, Group: 1},
			{Field: "image_background_md", Pattern: patImageMD, Group: 1},
			{Field: "image_background_sm", Pattern: patImageSM, Group: 1},
			{Field: "headerBackgroundColor", Pattern: patHeaderBg, Group: 1, Fallback: defaultHeaderHex},
			{Field: "headerBorderBottom", Pattern: patHeaderBorder, Group: 1, Steps: []Step{StepRGBAToHex}, Fallback: defaultHeaderHex},
			{Field: "modal_content", Pattern: patModalList, Group: 0, Steps: []Step{StepStripNewlines}},
			{Field: "promocode", Pattern: patPromoCookie, Group: 1},
			{Field: "PageTitle", Pattern: patTitle, Group: 1},
			{Field: "metaDescription", Pattern: patMetaDesc, Group: 1},
			{Field: "buttonLink", Pattern: patButtonHref, Group: 1},
			{Field: "buttonText", Pattern: patButtonText, Group: 1},
			{Field: "imgSrc", Pattern: patPromoTextImg, Group: 1},
			{Field: "imgAlt", Pattern: patPromoTextImg, Group: 2},
		},
	})

	Register(Profile{
		Name:        "modal-body",
		Description: "Earlier revision: modal-body terms block, promo image link, all input columns kept",
		Merge:       MergePassthrough,
		Rules: []Rule{
			{Field: "image_background_xl", Pattern: patImageXL, Group: 1},
			{Field: "image_background_md", Pattern: patImageMD, Group: 1},
			{Field: "image_background_sm", Pattern: patImageSM, Group: 1},
			{Field: "modal_content", Pattern: patModalBody, Group: 0, Steps: []Step{StepStripNewlines}},
			{Field: "promocode", Pattern: patPromoCookie, Group: 1},
			{Field: "PageTitle", Pattern: patTitle, Group: 1},
			{Field: "metaDescription", Pattern: patMetaDesc, Group: 1},
			{Field: "promoImage", Pattern: patButtonHref, Group: 1},
			{Field: "buttonText", Pattern: patButtonText, Group: 1},
			{Field: "imgSrc", Pattern: patPromoTextImg, Group: 1},
			{Field: "imgAlt", Pattern: patPromoTextImg, Group: 2},
		},
	})
}
