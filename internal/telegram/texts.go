package telegram

// UI texts in English
const (
	startText = "👋 I keep track of which time zone everyone in this chat lives in.\n\n" +
		"/settz — answer three quick questions to set your time zone\n" +
		"/times — what time it is for everyone here\n" +
		"/time — current UTC time and yours\n" +
		"/whenis — reply to someone to see their local time\n" +
		"/whois — reply to someone to see their settings\n" +
		"/aboutme locale <tag> | color <name> — personal preferences\n" +
		"/digest HH:MM | off — post the roster daily at HH:MM UTC"

	whoisFmt = "👤 %s\n• Zone: %s\n• Offset: %s\n• DST: %s\n• Locale: %s\n• Color: %s"

	aboutMeUsage = "Usage: /aboutme locale <tag> (e.g. de-CH) or /aboutme color <name>"
	digestUsage  = "Usage: /digest HH:MM (UTC) to post the roster daily, or /digest off"
	replyNeeded  = "Reply to someone's message with this command."
	storeFailure = "Could not reach storage. Please try again later."
	notSet       = "—"
)
