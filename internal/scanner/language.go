package scanner

import (
	"path"
	"strings"
)

var extensionLanguages = map[string]string{
	".py":          "Python",
	".js":          "JavaScript",
	".ts":          "TypeScript",
	".tsx":         "TypeScript JSX",
	".cjs":         "CommonJS",
	".java":        "Java",
	".go":          "Go",
	".rb":          "Ruby",
	".c":           "C",
	".h":           "C Header",
	".cpp":         "C++",
	".hpp":         "C++ Header",
	".cs":          "C#",
	".php":         "PHP",
	".swift":       "Swift",
	".kt":          "Kotlin",
	".scala":       "Scala",
	".rs":          "Rust",
	".sh":          "Shell Script",
	".pl":          "Perl",
	".r":           "R",
	".sql":         "SQL",
	".html":        "HTML",
	".css":         "CSS",
	".json":        "JSON",
	".yml":         "YAML",
	".yaml":        "YAML",
	".xml":         "XML",
	".md":          "Markdown",
	".txt":         "Text",
	".ps1":         "PowerShell",
	".soql":        "SOQL",
	".sosl":        "SOSL",
	".apex":        "Apex",
	".cls":         "Apex Class",
	".trigger":     "Apex Trigger",
	".page":        "Visualforce Page",
	".component":   "Visualforce Component",
	".dockerfile":  "Dockerfile",
	".tf":          "Terraform",
	".tpl":         "Terraform Plan",
	".ini":         "INI",
	".properties":  "Properties",
	".email":       "Email",
	".bin":         "Binary",
	".exe":         "Executable",

	".sfdx-project": "Salesforce Config",
}

// Special file names are matched on the lower-cased base name without a leading dot.
var specialFiles = map[string]string{
	"dockerfile":     "Docker",
	"makefile":       "Make",
	"gitignore":      "Git",
	"gitattributes":  "Git",
	"forceignore":    "Salesforce",
	"prettierignore": "Prettier",
	"prettierrc":     "Prettier",
	"eslintrc":       "ESLint",
	"babelrc":        "Babel",
	"stylelintrc":    "Stylelint",
	"editorconfig":   "EditorConfig",
	"npmignore":      "NPM",
	"npmrc":          "NPM",
	"dockerignore":   "Docker",
}

var specialPaths = []struct {
	fragment string
	language string
}{
	{"husky/pre-commit", "Husky"},
	{".github/workflows", "GitHub Actions"},
}

var codeExtensions = map[string]bool{
	".py": true, ".js": true, ".ts": true, ".java": true, ".go": true, ".rb": true, ".php": true,
	".cpp": true, ".c": true, ".h": true, ".cs": true, ".swift": true, ".kt": true, ".scala": true,
	".rs": true, ".sh": true, ".sql": true, ".html": true, ".css": true, ".json": true, ".yml": true,
}

// Language names the language of a repository path, or "" when unknown.
func Language(p string) string {
	if p == "" {
		return ""
	}
	lower := strings.ToLower(p)
	base := strings.TrimPrefix(path.Base(lower), ".")

	if lang, ok := specialFiles[base]; ok {
		return lang
	}
	for _, sp := range specialPaths {
		if strings.Contains(lower, sp.fragment) {
			return sp.language
		}
	}
	return extensionLanguages[path.Ext(lower)]
}

// IsCodeFile reports whether p should be passed to the complexity scanner.
func IsCodeFile(p string) bool {
	return codeExtensions[path.Ext(p)]
}

// Extension returns the lower-cased extension of p with its dot, or the
// base name for extensionless files such as Makefile.
func Extension(p string) string {
	lower := strings.ToLower(p)
	if ext := path.Ext(lower); ext != "" {
		return ext
	}
	return path.Base(lower)
}
