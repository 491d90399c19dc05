package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/Clinteastman/heartlib/internal/model"
	"github.com/Clinteastman/heartlib/internal/service"
	"github.com/Clinteastman/heartlib/pkg/response"
)

type LyricsHandler struct {
	service   *service.LyricsService
	validator *validator.Validate
}

func NewLyricsHandler(svc *service.LyricsService, v *validator.Validate) *LyricsHandler {
	return &LyricsHandler{
		service:   svc,
		validator: v,
	}
}

// Generate handles POST /api/lyrics/generate
func (h *LyricsHandler) Generate(c *fiber.Ctx) error {
	var req model.LyricsGenerateRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	result, err := h.service.Generate(c.Context(), &req)
	if err != nil {
		if errors.Is(err, service.ErrLLMNotConfigured) {
			return response.AIUnavailable(c, err.Error())
		}
		return response.AIError(c, err.Error())
	}

	return response.OK(c, result)
}

// TagPresets handles GET /api/lyrics/tag-presets
func (h *LyricsHandler) TagPresets(c *fiber.Ctx) error {
	return response.OK(c, tagPresets)
}

// Example handles GET /api/lyrics/example
func (h *LyricsHandler) Example(c *fiber.Ctx) error {
	return response.OK(c, model.LyricsExample{
		Lyrics: exampleLyrics,
		Tags:   exampleTags,
	})
}

// Preset tag categories for the frontend
var tagPresets = model.TagPresets{
	Instruments: []string{
		"piano", "guitar", "acoustic guitar", "electric guitar", "synthesizer",
		"strings", "violin", "cello", "drums", "bass", "saxophone", "trumpet",
		"flute", "harp", "orchestra",
	},
	Moods: []string{
		"happy", "sad", "melancholic", "uplifting", "romantic", "peaceful",
		"energetic", "dramatic", "nostalgic", "hopeful", "mysterious",
		"passionate", "calm", "intense", "dreamy",
	},
	Genres: []string{
		"pop", "rock", "ballad", "folk", "electronic", "jazz", "classical",
		"r&b", "indie", "country", "soul", "blues", "hip hop", "dance",
		"acoustic", "alternative",
	},
	Feels: []string{
		"upbeat", "slow", "mid-tempo", "fast", "groovy", "atmospheric",
		"cinematic", "intimate", "powerful", "gentle", "rhythmic",
	},
	Vocals: []string{
		"male vocals", "female vocals", "duet", "choir", "soft vocals",
		"powerful vocals", "emotional vocals",
	},
}

const exampleLyrics = `[Intro]

[Verse]
walking through the city lights
shadows dance across the night
every corner holds a dream
nothing's ever what it seems

[Prechorus]
i can feel the rhythm start
beating deep inside my heart

[Chorus]
we're alive tonight
chasing stars so bright
let the music take us high
we're alive tonight

[Verse]
memories like photographs
frozen moments, joy and laughs
time keeps moving ever on
but this feeling won't be gone

[Chorus]
we're alive tonight
chasing stars so bright
let the music take us high
we're alive tonight

[Bridge]
when the world feels far away
in this moment we will stay
nothing else can touch us here
just the music, crystal clear

[Chorus]
we're alive tonight
chasing stars so bright
let the music take us high
we're alive tonight

[Outro]
we're alive tonight`

const exampleTags = "pop,uplifting,synthesizer,energetic,female vocals"
