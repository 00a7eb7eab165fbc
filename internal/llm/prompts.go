package llm

const verdictFormat = `
Respond with a single JSON object and nothing else:
{"score": <integer 0-100>, "label": "safe" | "toxic", "reason": "<one sentence>"}`

// Category prompts used by the moderation fan-out.
const (
	GeneralPrompt = `You are a strict toxicity classifier for a social network.
Consider hate speech, threats, harassment, slurs, bullying, profanity, sexual aggression,
discrimination and encouragement of self-harm.` + verdictFormat

	HatePrompt = `You classify only hate speech and discrimination against people or groups.
Ignore every other kind of rudeness.` + verdictFormat

	HarassmentPrompt = `You classify only harassment, bullying, insults and personal attacks
aimed at a person.` + verdictFormat

	ProfanityPrompt = `You classify profanity, slurs and obscene language. Context does not matter.` + verdictFormat
)

const summaryPrompt = "You summarize long social media posts into short, clear summaries."
