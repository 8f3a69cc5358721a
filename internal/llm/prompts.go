package llm

import (
	"fmt"
	"strings"
)

// FormatTraits renders a trait list as natural prose: "curious, tidy and blunt".
func FormatTraits(traits []string) string {
	switch len(traits) {
	case 0:
		return "unremarkable"
	case 1:
		return traits[0]
	default:
		return strings.Join(traits[:len(traits)-1], ", ") + " and " + traits[len(traits)-1]
	}
}

// PlanPrompt asks for a full-day schedule built only from known activities.
func PlanPrompt(name, traits, backstory, clockLabel, memoryDigest string, titles []string) (system, user string) {
	system = fmt.Sprintf(
		"You are %s, a character in a shared office world. You are %s. %s "+
			"You plan your day realistically and in character.",
		name, traits, backstory)
	user = fmt.Sprintf(
		"It is %s. Write your schedule for the rest of today.\n\n"+
			"Relevant memories:\n%s\n\n"+
			"You may only use these activities: %s.\n"+
			"Write one activity per line in the exact format HH:MM - Activity. "+
			"Times are 24-hour. Do not add commentary.",
		clockLabel, memoryDigest, strings.Join(titles, ", "))
	return system, user
}

// ReflectionPrompt asks for higher-level insights drawn from recent memories.
func ReflectionPrompt(name, traits, clockLabel, memoryDigest string) (system, user string) {
	system = fmt.Sprintf(
		"You are %s, a character in a shared office world. You are %s. "+
			"You reflect honestly on your recent experiences.",
		name, traits)
	user = fmt.Sprintf(
		"It is %s. Review your recent memories and write 2-3 higher-level "+
			"insights about yourself, other people, or your situation.\n\n"+
			"Recent memories:\n%s\n\n"+
			"Write each insight as a bullet point ending with an importance "+
			"tag, for example:\n- I work better before lunch [Importance: 3]\n"+
			"Importance runs 1 (trivial) to 5 (life-changing).",
		clockLabel, memoryDigest)
	return system, user
}

// DialoguePrompt asks for a short two-person conversation transcript.
func DialoguePrompt(aName, aTraits, aDigest, bName, bTraits, bDigest, clockLabel, areaName string) (system, user string) {
	system = "You write short, natural conversations between two office coworkers. " +
		"Stay in character for both. Keep it to 4-8 exchanges."
	user = fmt.Sprintf(
		"It is %s in the %s.\n\n"+
			"%s is %s. What %s remembers:\n%s\n\n"+
			"%s is %s. What %s remembers:\n%s\n\n"+
			"Write their conversation. Format every line as Name: utterance, "+
			"with no narration or stage directions.",
		clockLabel, areaName,
		aName, aTraits, aName, aDigest,
		bName, bTraits, bName, bDigest)
	return system, user
}

// DialogueSummaryPrompt asks for a second-person summary of a conversation
// from one participant's point of view.
func DialogueSummaryPrompt(name, otherName, transcript string) (system, user string) {
	system = fmt.Sprintf("You summarize conversations from %s's point of view, "+
		"addressing %s as \"you\".", name, name)
	user = fmt.Sprintf(
		"Summarize this conversation between you (%s) and %s in 1-2 sentences, "+
			"second person, keeping anything worth remembering:\n\n%s",
		name, otherName, transcript)
	return system, user
}

// ReplanGatePrompt asks a yes/no question: should this conversation change
// the rest of the character's day.
func ReplanGatePrompt(name, summary string) (system, user string) {
	system = fmt.Sprintf("You are %s. Answer with a single word, yes or no.", name)
	user = fmt.Sprintf(
		"You just had this conversation:\n%s\n\n"+
			"Should this change your plans for the rest of the day? Answer yes or no.",
		summary)
	return system, user
}

// ReplanPrompt asks for a replacement schedule for the remainder of the day.
func ReplanPrompt(name, traits, backstory, clockLabel, reason, memoryDigest string, titles []string) (system, user string) {
	system = fmt.Sprintf(
		"You are %s, a character in a shared office world. You are %s. %s",
		name, traits, backstory)
	user = fmt.Sprintf(
		"It is %s. Something just happened: %s\n\n"+
			"Relevant memories:\n%s\n\n"+
			"Rewrite your schedule for the REST of today, starting from now. "+
			"You may only use these activities: %s.\n"+
			"Write one activity per line in the exact format HH:MM - Activity. "+
			"Times are 24-hour. Do not add commentary.",
		clockLabel, reason, memoryDigest, strings.Join(titles, ", "))
	return system, user
}
