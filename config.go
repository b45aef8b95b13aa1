package geonarrative

// Config holds values read from the environment by the command line tool
var Config struct {
	OpenAIAPIKey  string
	OpenAIBaseURL string
	DatabasePath  string
	SettingsPath  string
}
