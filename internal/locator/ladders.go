package locator

import (
	"fmt"

	"github.com/xkilldash9x/bulksend/internal/config"
)

// Ladders groups every ladder the delivery flow uses.
type Ladders struct {
	Send             Ladder
	Attach           Ladder
	FileInput        Ladder
	Caption          Ladder
	MediaSend        Ladder
	InvalidIndicator Ladder
}

// SendLadder prefers the labeled button, then test ids, icons, class
// matches and the footer layout, and finally commits with Enter in the composer.
func SendLadder() Ladder {
	return Ladder{
		XPath("send button by aria-label", "//button[@aria-label='Send']"),
		XPath("send button by test id", "//button[@data-testid='compose-btn-send']"),
		XPath("send icon", "//span[@data-icon='send']"),
		XPath("send icon by test id", "//span[@data-testid='send']"),
		XPath("button with send class", "//button[contains(@class, 'send')]"),
		XPath("footer send button", "//*[@id='main']/footer/div[1]/div/span[2]/div/div[2]/div[2]/button"),
		KeyboardCommit("composer enter", "//footer//div[@contenteditable='true']"),
	}
}

func AttachLadder() Ladder {
	return Ladder{
		XPath("attach button by title", "//div[@title='Attach']"),
		XPath("attach button by aria-label", "//button[@aria-label='Attach']"),
		XPath("plus icon", "//span[@data-icon='plus']"),
		XPath("clip icon", "//span[@data-icon='clip']"),
	}
}

// FileInputLadder targets hidden inputs, so presence is enough.
func FileInputLadder() Ladder {
	return Ladder{
		Present("photo and video input", "//input[@accept='image/*,video/mp4,video/3gpp,video/quicktime']"),
		Present("any image input", "//input[@type='file'][contains(@accept, 'image')]"),
		Present("any file input", "//input[@type='file']"),
	}
}

func CaptionLadder() Ladder {
	return Ladder{
		XPath("caption by aria-label", "//div[@aria-label='Add a caption'][@contenteditable='true']"),
		XPath("caption editor", "//div[@contenteditable='true'][@data-tab='10']"),
		XPath("media editor textbox", "//div[@role='textbox'][@contenteditable='true'][not(ancestor::footer)]"),
	}
}

func MediaSendLadder() Ladder {
	return Ladder{
		XPath("media send by aria-label", "//div[@aria-label='Send'][@role='button']"),
		XPath("media send button", "//button[@aria-label='Send']"),
		XPath("media send icon", "//span[@data-icon='send']"),
		XPath("media send icon by test id", "//span[@data-testid='send']"),
	}
}

// InvalidIndicatorLadder matches the banner shown for unregistered numbers.
func InvalidIndicatorLadder() Ladder {
	return Ladder{
		Present("invalid number banner", "//*[contains(text(), 'Phone number shared via url is invalid.')]"),
	}
}

// DefaultLadders returns the built-in ladders.
func DefaultLadders() Ladders {
	return Ladders{
		Send:             SendLadder(),
		Attach:           AttachLadder(),
		FileInput:        FileInputLadder(),
		Caption:          CaptionLadder(),
		MediaSend:        MediaSendLadder(),
		InvalidIndicator: InvalidIndicatorLadder(),
	}
}

// NewLadders applies configured overrides on top of the defaults.
func NewLadders(cfg config.LocatorConfig) (Ladders, error) {
	def := DefaultLadders()
	var out Ladders
	var err error
	build := []struct {
		name     string
		specs    []config.LocatorSpec
		fallback Ladder
		dst      *Ladder
	}{
		{"send", cfg.Send, def.Send, &out.Send},
		{"attach", cfg.Attach, def.Attach, &out.Attach},
		{"file_input", cfg.FileInput, def.FileInput, &out.FileInput},
		{"caption", cfg.Caption, def.Caption, &out.Caption},
		{"media_send", cfg.MediaSend, def.MediaSend, &out.MediaSend},
		{"invalid_indicator", cfg.InvalidIndicator, def.InvalidIndicator, &out.InvalidIndicator},
	}
	for _, b := range build {
		if *b.dst, err = BuildLadder(b.specs, b.fallback); err != nil {
			return Ladders{}, fmt.Errorf("%s ladder: %w", b.name, err)
		}
	}
	return out, nil
}
