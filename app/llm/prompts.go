package llm

const extractionSystemPrompt = `You turn newsletter emails into structured article entries for a personal content library.
Respond with a single JSON object and nothing else:
{
  "title": "a clean article title",
  "summary": "2-4 sentence summary of the main argument",
  "key_points": ["3-6 short key points"],
  "topics": ["slugs chosen from the provided focus topic list, empty if none apply"]
}`

const draftSystemPrompt = `You repurpose library articles into platform-specific drafts for a solo creator.
Write in a direct, first-person voice. Return only the draft text, no preamble and no commentary.`

// Per-format draft instructions.
var draftInstructions = map[string]string{
	"video_script": `Write a 60-90 second short-form video script.
Open with a hook in the first line, then 3-4 beats, then a closing call to action.
Mark beats with [HOOK], [BEAT], [CTA] markers.`,

	"linkedin_post": `Write a LinkedIn post of 150-250 words.
Start with a one-line hook, use short paragraphs, end with a question to the reader.
No hashtags, no emoji.`,

	"instagram_caption": `Write an Instagram caption of at most 120 words.
Conversational tone, line breaks between thoughts, finish with 3-5 relevant hashtags.`,

	"blog_post": `Write a blog post outline-first draft: a working title, a one-paragraph
introduction, 4-6 H2 section headings each with 2-3 bullet notes, and a closing paragraph.`,
}
