package prompt

// system is shared by every kind. Each kind then adds its own instructions.
const system = `You are Quill, a creative writing assistant. Write only the requested piece.
Do not add a preamble, a closing note or commentary about the text.
Format with plain paragraphs; use markdown headings only where the piece needs a title.`

var userTemplates = map[Kind]string{
	KindStory: `Write a short story{{with .Genre}} in the {{.}} genre{{end}}, {{.Words}}.
{{- with .Tone}}
Tone: {{.}}.{{end}}
{{- with .Characters}}
Characters: {{.}}.{{end}}

Premise:
{{.Prompt}}`,

	KindFanfic: `Write a piece of fan fiction set in the world of {{.Fandom}}, {{.Words}}.
Stay faithful to the established characters and setting.
{{- with .Characters}}
Featuring: {{.}}.{{end}}
{{- with .Tone}}
Tone: {{.}}.{{end}}

Premise:
{{.Prompt}}`,

	KindPoem: `Write a poem{{with .Style}} in the form of a {{.}}{{end}} about the subject below.
{{- with .Tone}}
Tone: {{.}}.{{end}}
Length: {{.Words}}.

Subject:
{{.Prompt}}`,

	KindPlot: `Outline the plot of a{{with .Genre}} {{.}}{{end}} story as a numbered list of beats,
from the inciting incident to the resolution. Keep the outline {{.Words}}.
{{- with .Characters}}
Main characters: {{.}}.{{end}}

Idea:
{{.Prompt}}`,

	KindBackstory: `Write the backstory of the character described below, {{.Words}}.
Cover their origins, a defining turning point and what they want now.
{{- with .Genre}}
Setting genre: {{.}}.{{end}}
{{- with .Tone}}
Tone: {{.}}.{{end}}

Character:
{{.Prompt}}`,

	KindTitles: `Suggest {{.Count}} distinct titles{{with .Genre}} for a {{.}} piece{{end}} based on the description below.
Return one title per line with no numbering and no explanation.

Description:
{{.Prompt}}`,
}
