package generation

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
	"google.golang.org/genai"
)

// GenerateIllustration renders the story as a cartoon. It never fails: when
// the model returns no image the fixed placeholder is used instead.
func (c *Client) GenerateIllustration(ctx context.Context, story string) string {
	start := time.Now()

	resp, err := c.generate(ctx, c.cfg.ImageModel, genai.Text(illustrationPrompt(story)), &genai.GenerateContentConfig{
		ImageConfig: &genai.ImageConfig{AspectRatio: IllustrationAspectRatio},
	})
	if err != nil {
		c.logger.Warn().Err(err).Msg("illustration failed, using placeholder")
		observe(kindImage, outcomeFallback, start)
		return FallbackImage
	}

	blob := firstInlineData(resp)
	if blob == nil {
		c.logger.Warn().Msg("illustration response had no image, using placeholder")
		observe(kindImage, outcomeFallback, start)
		return FallbackImage
	}

	mime := blob.MIMEType
	if !strings.HasPrefix(mime, "image/") {
		mime = "image/png"
	}
	observe(kindImage, outcomeOK, start)
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(blob.Data)
}

// GenerateNarration synthesizes text with the explorer persona. Rate-limited
// requests are retried per the configured policy; any other failure, or
// running out of retries, yields nil.
func (c *Client) GenerateNarration(ctx context.Context, text string) []byte {
	start := time.Now()
	config := &genai.GenerateContentConfig{
		ResponseModalities: []string{string(genai.ModalityAudio)},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: c.cfg.Voice},
			},
		},
	}
	contents := genai.Text(narrationPrompt(text))

	backoff := retry.WithMaxRetries(c.cfg.NarrationMaxRetries, retry.NewConstant(c.cfg.NarrationRetryDelay))
	attempt := 0
	audio, err := retry.DoValue(ctx, backoff, func(ctx context.Context) ([]byte, error) {
		attempt++
		if attempt > 1 {
			narrationRetries.Inc()
		}

		resp, err := c.generate(ctx, c.cfg.SpeechModel, contents, config)
		if err != nil {
			if isRateLimited(err) {
				c.logger.Warn().Int("attempt", attempt).Msg("speech quota exceeded")
				return nil, retry.RetryableError(err)
			}
			return nil, err
		}

		blob := firstInlineData(resp)
		if blob == nil {
			return nil, nil
		}
		return blob.Data, nil
	})
	if err != nil {
		c.logger.Warn().Err(err).Int("attempts", attempt).Msg("speech generation failed")
		observe(kindSpeech, outcomeError, start)
		return nil
	}
	if len(audio) == 0 {
		observe(kindSpeech, outcomeEmpty, start)
		return nil
	}

	observe(kindSpeech, outcomeOK, start)
	return audio
}

func isRateLimited(err error) bool {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == 429 || apiErr.Status == "RESOURCE_EXHAUSTED"
	}
	return false
}
