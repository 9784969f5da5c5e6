package copilot

import (
	"context"
	"fmt"

	"github.com/parleylabs/parley/pkg/infer"
)

// classifyMinTranscript is the transcript size the session must exceed
// before context classification runs.
const classifyMinTranscript = 5

// classifyExcerptLimit bounds how much transcript text is sent to the
// classifier.
const classifyExcerptLimit = 500

type meetingContextResult struct {
	Genre        string   `json:"genre"`
	Participants []string `json:"participants"`
	Topic        string   `json:"topic,omitempty"`
}

var meetingContextSchema = func() *infer.Schema {
	s := infer.MustSchemaFor[meetingContextResult]()
	s.Properties["genre"].Enum = []any{"negotiation", "presentation", "interview", "general"}
	return s
}()

// classifyContext labels the conversational genre from an early
// transcript excerpt. It never fails: any inference error degrades to
// the general genre with no participants, and the session proceeds.
func classifyContext(ctx context.Context, client infer.Client, transcriptText string) *MeetingContext {
	excerpt := transcriptText
	if len(excerpt) > classifyExcerptLimit {
		excerpt = excerpt[:classifyExcerptLimit]
	}

	var res meetingContextResult
	err := client.Invoke(ctx, infer.Call{
		Name:        "meeting_context",
		Description: "Classification of an ongoing conversation.",
		System:      "You are an expert meeting analyst. Return JSON only.",
		User: fmt.Sprintf(`Analyze the following conversation excerpt and determine:
1. The conversation genre (negotiation/presentation/interview/general)
2. The likely participants
3. The topic, if apparent

Excerpt: %q`, excerpt),
		Schema: meetingContextSchema,
	}, &res)
	if err != nil {
		return &MeetingContext{Genre: GenreGeneral, Participants: []string{}}
	}

	mc := &MeetingContext{
		Genre:        Genre(res.Genre),
		Participants: res.Participants,
		Topic:        res.Topic,
	}
	if !mc.Genre.Valid() {
		mc.Genre = GenreGeneral
	}
	if mc.Participants == nil {
		mc.Participants = []string{}
	}
	return mc
}
