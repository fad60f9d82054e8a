package prompt

// LinkedInIntroTemplate takes the contact's LinkedIn URL.
const LinkedInIntroTemplate = `You are helping a B2B event organiser write short, personalized email intros to executives.
You're provided with the LinkedIn URL: %s

Write a short, professional and personalized intro (1–2 sentences max) that mentions something about their background, experience, or company. This intro will be used as the opening line in an email inviting them to a private executive event relevant to their field.`

// OutreachSystemPrompt frames the profile-based variants.
const OutreachSystemPrompt = `You are an assistant that writes concise, warm and professional outreach copy for a B2B events company. You never invent facts about the recipient beyond what you are given.`

// ProfileIntroTemplate args: first name, last name, job title, company name,
// event format, company description, topics.
const ProfileIntroTemplate = `Write a short, personalised intro (1–2 sentences max) for an email inviting %s %s, %s at %s, to an exclusive %s.

About their company: %s

The event will focus on %s. Connect their role or company to these themes naturally. Do not include a greeting or a sign-off.`

// EventHookTemplate args: first name, last name, job title, company name,
// event format, topics, company description.
const EventHookTemplate = `Write one sentence explaining why %s %s (%s at %s) would get real value from attending our %s on %s.

Company context: %s

Be specific to their role and company. No greeting, no sign-off, no hashtags.`

// FallbackTopics stands in for the topic list when a run supplies none.
const FallbackTopics = "the key challenges and opportunities shaping their industry"

const (
	virtualFormat  = "virtual executive roundtable"
	inPersonFormat = "in-person executive dinner"
)
