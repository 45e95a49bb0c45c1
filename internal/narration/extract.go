package narration

import (
	"errors"
	"regexp"
	"strings"
)

// Models wrap their JSON answer in <answer> tags or a ```json fence, and
// sometimes escape dollar signs. extractAnswer pulls out the payload and
// undoes the escaping.
var answerPattern = regexp.MustCompile(`(?is)(?:<answer>|` + "```json\n" + `)(.*?)(?:</answer>|` + "```" + `)`)

// ErrMalformedAnswer means the model response carried no recognizable answer
// block.
var ErrMalformedAnswer = errors.New("model response has no answer tags or json fence")

func extractAnswer(response string) (string, error) {
	match := answerPattern.FindStringSubmatch(response)
	if match == nil {
		return "", ErrMalformedAnswer
	}
	answer := strings.TrimSpace(match[1])
	answer = strings.ReplaceAll(answer, `\\$`, "$")
	answer = strings.ReplaceAll(answer, `\$`, "$")
	return answer, nil
}
