package prompt

import (
	"fmt"
	"strings"

	"github.com/mempirate/brochure/util"
)

// MAX_CORPUS_CHARS is the number of characters of website content embedded in the brochure prompt.
const MAX_CORPUS_CHARS = 8_000

const LINK_SYSTEM_PROMPT = `
You are an assistant tasked with selecting only the most relevant links from a company's website 
for creating a brochure. 

Instructions:
1. Return ONLY a valid JSON object in the following format:
{
    "links": [
        {"type": "about page", "url": "https://..."},
        {"type": "careers page", "url": "https://..."}
    ]
}
2. Include only links relevant to a company brochure, such as About Us, Careers, Products/Services, Customers, or Culture pages.
3. Do NOT include Terms of Service, Privacy Policy, email links, login pages, or any unrelated links.
4. If a link is relative (starts with /), convert it to a full HTTPS URL using the website's base URL.
5. Do not include any explanations, text, or commentary outside the JSON.
6. Ensure the JSON is properly formatted and parseable.

Respond strictly according to these instructions.
`

const LINKS_PROMPT = "You are an assistant tasked with selecting only the relevant web pages for a brochure about %s. " +
	"Analyze the list of links and return a JSON array of full HTTPS URLs that are most useful for a company brochure. " +
	"Do not include links to Terms of Service, Privacy Policy, email links, login pages, or external unrelated pages.\n\n" +
	"If any link is relative (starts with /), convert it into a full URL using the website's base URL.\n\n" +
	"Here is the list of links:\n"

// CreateLinksPrompt builds the user prompt for link selection, listing one link per line.
func CreateLinksPrompt(url string, links []string) string {
	return fmt.Sprintf(LINKS_PROMPT, url) + strings.Join(links, "\n")
}

const BROCHURE_SYSTEM_PROMPT = "You are a professional marketing assistant tasked with creating a short, engaging brochure " +
	"for a company based on the content of its website. Your audience includes prospective customers, " +
	"investors, and potential employees. Respond strictly in markdown. \n\n" +
	"Guidelines:\n" +
	"1. Start with a brief overview of the company.\n" +
	"2. Include sections on:\n" +
	"   - Company Culture\n" +
	"   - Products/Services\n" +
	"   - Customers & Partners\n" +
	"   - Careers/Job Opportunities\n" +
	"3. Keep language concise, positive, and professional.\n" +
	"4. Use headings, bullet points, or numbered lists where appropriate.\n" +
	"5. Only include information available from the website; do not hallucinate facts.\n"

const BROCHURE_PROMPT = "You are creating a professional brochure for the company: **%s**.\n\n" +
	"Instructions:\n" +
	"1. Use the content provided from the landing page and other relevant pages.\n" +
	"2. Write a concise, engaging brochure in **Markdown**.\n" +
	"3. Include sections such as:\n" +
	"   - Overview of the company\n" +
	"   - Company culture\n" +
	"   - Products or services\n" +
	"   - Customers or partners\n" +
	"   - Careers / job opportunities (if available)\n" +
	"4. Use headings, bullet points, and short paragraphs for readability.\n" +
	"5. Do not hallucinate information; only use the provided content.\n\n" +
	"Website content:\n"

// CreateBrochurePrompt builds the brochure user prompt. Only the first MAX_CORPUS_CHARS
// characters of the corpus are embedded, the rest is dropped.
func CreateBrochurePrompt(company, corpus string) string {
	return fmt.Sprintf(BROCHURE_PROMPT, company) + util.Truncate(corpus, MAX_CORPUS_CHARS)
}
