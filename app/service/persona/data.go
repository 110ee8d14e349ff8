package persona

type Talkativeness struct {
	TargetMsgsPerMin     int  `json:"target_msgs_per_min" validate:"gte=0"`
	RespondOnMentions    bool `json:"respond_on_mentions"`
	ProactiveOnLullSec   int  `json:"proactive_on_lull_sec" validate:"gte=0"`
	MaxConsecutiveAiMsgs int  `json:"max_consecutive_ai_msgs" validate:"gte=0"`
}

type Safety struct {
	RefuseTopics []string `json:"refuse_topics"`
	PGRating     string   `json:"pg_rating"`
}

// Config describes one character.
type Config struct {
	Name             string          `json:"name" validate:"required,max=64"`
	Backstory        string          `json:"backstory" validate:"required"`
	Tone             string          `json:"tone"`
	Formality        string          `json:"formality"`
	EmojiOK          bool            `json:"emoji_ok"`
	Talkativeness    Talkativeness   `json:"talkativeness"`
	Addressing       map[string]bool `json:"addressing"`
	Safety           Safety          `json:"safety"`
	StructuredOutput bool            `json:"structured_output"`
}

// Params are the sampling parameters of the room's primary persona.
type Params struct {
	Temperature      float64 `json:"temperature" validate:"gte=0,lte=2"`
	TopP             float64 `json:"top_p" validate:"gte=0,lte=1"`
	PresencePenalty  float64 `json:"presence_penalty" validate:"gte=-2,lte=2"`
	FrequencyPenalty float64 `json:"frequency_penalty" validate:"gte=-2,lte=2"`
	MaxTokens        int     `json:"max_tokens" validate:"gte=1,lte=8192"`
}

// BotMetadata is what the UI shows in the bot picker.
type BotMetadata struct {
	Emoji       string `json:"emoji"`
	Tagline     string `json:"tagline"`
	Description string `json:"description"`
}

func DefaultTalkativeness() Talkativeness {
	return Talkativeness{
		TargetMsgsPerMin:     1,
		RespondOnMentions:    true,
		ProactiveOnLullSec:   45,
		MaxConsecutiveAiMsgs: 1,
	}
}

func DefaultParams() Params {
	return Params{
		Temperature:      0.7,
		TopP:             0.9,
		PresencePenalty:  0.2,
		FrequencyPenalty: 0.2,
		MaxTokens:        400,
	}
}

// Clone returns a deep copy so callers never share maps or slices with a room.
func (c Config) Clone() Config {
	out := c

	if c.Addressing != nil {
		out.Addressing = make(map[string]bool, len(c.Addressing))
		for k, v := range c.Addressing {
			out.Addressing[k] = v
		}
	}

	if c.Safety.RefuseTopics != nil {
		out.Safety.RefuseTopics = append([]string(nil), c.Safety.RefuseTopics...)
	}

	return out
}
