package email

// PreviewData contains sample template data for local preview/testing.
//
// It maps:
//
//	templateName -> (templateVariableName -> exampleValue)
//
// Example:
//
//	PreviewData["welcome"]["UserName"] == "Ada"
var PreviewData = map[Template]map[string]string{
	TemplateWelcome: {
		"UserName": "Ada",
		"UserID":   "65f1c0ffee0000000000beef",
	},
}
