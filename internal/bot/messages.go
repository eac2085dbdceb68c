package bot

// User-facing replies. Every handled event produces exactly one of these.
const (
	msgWelcomeBack = "Welcome back to the Todoist Bot! Use /help to see all commands."
	msgWelcomeNew  = "Welcome to the Todoist Bot! To get started, please send me your Todoist API token."

	msgChooseProject  = "Choose a project to forward to:"
	msgProjectUpdated = "Project updated."
	msgNoProjects     = "No projects found in your Todoist account."
	msgProjectsFailed = "Could not load your projects. Please try again later."

	msgChangeToken   = "To change the token, please send me a valid Todoist API token."
	msgTokenAccepted = "Great! Your Todoist API token has been successfully set."
	msgTokenInvalid  = "Invalid Todoist API token. Please provide a valid token."

	msgTaskAdded        = "Task added."
	msgTaskAddedNoFile  = "Task added, but the photo could not be attached."
	msgTaskFailed       = "Problem occurred, task was not added."
	msgDueUpdated       = "Due time was updated successfully."
	msgDueUpdateFailed  = "Failed to update due time."
	msgUndoDone         = "Undo successful. Task canceled and removed from Todoist."
	msgUndoFailed       = "Could not remove the last task. Please try again later."
	msgUndoCancelled    = "Undo successful. Pending step cancelled."
	msgNothingToUndo    = "No task to undo."
	msgInternalError    = "Something went wrong. Please try again."
	msgToggleOnSuffix   = "according to the time of the sent message"
	msgTogglePrefix     = "Updated successfully. due time is now "
	msgDecodeFailPrefix = "Failed to decode session data: "
)

func helpText(preference bool) string {
	toggle := "On ← Off"
	if preference {
		toggle = "On → Off"
	}
	return "Available commands:\n" +
		"/start - Start the bot \n" +
		"/set_project - Choose project to forward to\n" +
		"/toggle_time - " + toggle + "\n" +
		"/undo - Cancel last task \n" +
		"/change_token - Change API token \n" +
		"/help - List of commands \n\n" +
		"NEW! reply on last task with a new due time.\n" +
		"Use time formats and English phrases like \"19:32 next Wednesday\". "
}
