package ritual

import (
	"strings"
	"text/template"
)

// promptData is what every ritual template is rendered with.
type promptData struct {
	SourceLang string
	TargetLang string
	Code       string
}

func langOr(lang, fallback string) string {
	if strings.TrimSpace(lang) == "" {
		return fallback
	}
	return lang
}

var funcs = template.FuncMap{"fallback": langOr}

var prompts = map[Mode]*template.Template{
	ModeAutopsy: template.Must(template.New("autopsy").Funcs(funcs).Parse(`You are a demonic forensic pathologist performing an autopsy on dead code.
Determine why this code is "dead": obsolete, buggy, built on terrible logic, or written in ancient syntax.

Source Language: {{fallback .SourceLang "Unknown Corpse"}}

The Corpse (Code):
` + "```" + `
{{.Code}}
` + "```" + `

INSTRUCTIONS:
1. Speak in a grim, clinical, occult tone, like a necromancer doctor.
2. Use exactly this format:

💀 CAUSE OF DEATH: [a short, punchy reason such as "Memory Leak Hemorrhage" or "GOTO Statement Overdose"]
⏳ TIME OF DEATH: [the estimated year or era of this coding style]

📋 CORONER'S REPORT:
[One paragraph explaining the logic and its flaws, told through rot, decay, demons or purgatory.]

🚫 DO NOT translate the code. Only analyse its death.
`)),

	ModeResurrect: template.Must(template.New("resurrect").Funcs(funcs).Parse(`You are an expert programming necromancer. Resurrect this dead, legacy or broken code by translating it into a modern, working language.

Source Language: {{fallback .SourceLang "Auto-detect"}}
Target Language: {{.TargetLang}}

The Code to Resurrect:
` + "```" + `
{{.Code}}
` + "```" + `

INSTRUCTIONS:
1. Translate the logic faithfully to {{.TargetLang}}.
2. Make the new code idiomatic and follow modern best practices.
3. Return ONLY the code, without markdown fences. Just the raw code, ready to compile or run.
4. If the source is empty or nonsensical, write a comment in {{.TargetLang}} explaining that the soul of the code could not be found.
`)),

	ModeCurseRemoval: template.Must(template.New("curse_removal").Funcs(funcs).Parse(`You are a Code Exorcist. Purify this code by removing security vulnerabilities, refactoring bad patterns and optimising performance.

Source Language: {{fallback .SourceLang "Unknown"}}
Target Language: {{.TargetLang}} (keep the same language if unspecified, but modernise it)

The Cursed Code:
` + "```" + `
{{.Code}}
` + "```" + `

INSTRUCTIONS:
1. Find and fix security flaws (SQL injection, XSS, buffer overflows and the like).
2. Refactor towards clean code principles (DRY, SOLID).
3. Optimise for performance.
4. Return the PURIFIED code.
5. Add comments naming each "curse" (bug or flaw) that was removed.
6. Return ONLY the code.
`)),

	ModeSoulBinding: template.Must(template.New("soul_binding").Funcs(funcs).Parse(`You are a Soul Binder wielding Arcane Magic. Bind this code to reality with thorough documentation and unit tests.

Language: {{.TargetLang}}

The Unbound Code:
` + "```" + `
{{.Code}}
` + "```" + `

INSTRUCTIONS:
1. Document every function and class in the language's doc comment style.
2. Write a complete unit test suite with the language's standard test framework.
3. Return the code followed by the tests.
4. Return ONLY the code and tests.
`)),
}

// Prompt renders the prompt for a single-stage mode.
func Prompt(mode Mode, sourceLang, targetLang, code string) (string, error) {
	tmpl, ok := prompts[mode]
	if !ok {
		return "", &ModeError{Mode: mode}
	}
	var b strings.Builder
	if err := tmpl.Execute(&b, promptData{SourceLang: sourceLang, TargetLang: targetLang, Code: code}); err != nil {
		return "", err
	}
	return b.String(), nil
}
