// SPDX-License-Identifier: MIT
// Kenzy - A distributed voice assistant fabric for your home
// The source code is available at <https://github.com/lnxusr1/kenzy>

package skills

import (
	"fmt"
	"time"

	"github.com/lnxusr1/kenzy/internal/core"
	"github.com/lnxusr1/kenzy/internal/version"
)

// builtinSkills returns the skills compiled into every hub.
func builtinSkills() []Skill {
	return []Skill{
		&helloSkill{},
		&dateTimeSkill{},
		&aboutSkill{},
		&powerDownSkill{},
	}
}

// dayPart buckets the current hour into the greeting periods used by
// spoken responses.
func dayPart(now time.Time) string {
	switch h := now.Hour(); {
	case h < 4:
		return "night"
	case h < 12:
		return "morning"
	case h < 17:
		return "afternoon"
	case h < 21:
		return "evening"
	default:
		return "night"
	}
}

type helloSkill struct{}

func (s *helloSkill) Name() string        { return "HelloSkill" }
func (s *helloSkill) Description() string { return "Greets the user" }
func (s *helloSkill) Version() string     { return version.Version }
func (s *helloSkill) Stop() error         { return nil }

func (s *helloSkill) Initialize(dev *Device) error {
	phrases := []string{"hello", "hi", "hey there", "good morning", "good evening"}
	return dev.Manager().Bind(s, "hello", phrases, func(_ Intent, ctx *core.Context, _ string) bool {
		greeting := pick([]string{
			"Hello",
			"Hi there",
			"Good " + dayPart(time.Now()),
		})
		return dev.Say(greeting, ctx).IsSuccess()
	})
}

type dateTimeSkill struct{}

func (s *dateTimeSkill) Name() string        { return "TellDateTimeSkill" }
func (s *dateTimeSkill) Description() string { return "Tells the current date and time" }
func (s *dateTimeSkill) Version() string     { return version.Version }
func (s *dateTimeSkill) Stop() error         { return nil }

func (s *dateTimeSkill) Initialize(dev *Device) error {
	timePhrases := []string{"what time is it", "whats the time", "tell me the time"}
	err := dev.Manager().Bind(s, "tell_time", timePhrases, func(_ Intent, ctx *core.Context, _ string) bool {
		now := time.Now()
		return dev.Say(fmt.Sprintf("It is %s", now.Format("3:04 PM")), ctx).IsSuccess()
	})
	if err != nil {
		return err
	}

	datePhrases := []string{"what day is it", "whats the date", "tell me the date", "and the date"}
	return dev.Manager().Bind(s, "tell_date", datePhrases, func(_ Intent, ctx *core.Context, _ string) bool {
		now := time.Now()
		return dev.Say(fmt.Sprintf("Today is %s", now.Format("Monday, January 2")), ctx).IsSuccess()
	})
}

type aboutSkill struct{}

func (s *aboutSkill) Name() string        { return "AboutSkill" }
func (s *aboutSkill) Description() string { return "Describes this assistant" }
func (s *aboutSkill) Version() string     { return version.Version }
func (s *aboutSkill) Stop() error         { return nil }

func (s *aboutSkill) Initialize(dev *Device) error {
	phrases := []string{"who are you", "what are you", "what version are you"}
	return dev.Manager().Bind(s, "about", phrases, func(_ Intent, ctx *core.Context, _ string) bool {
		text := fmt.Sprintf("I am %s, version %s", version.AppTitle, version.Version)
		return dev.Say(text, ctx).IsSuccess()
	})
}

// powerDownSkill asks for confirmation before shutting the fabric
// down; the confirmation answer arrives through the ask table.
type powerDownSkill struct{}

func (s *powerDownSkill) Name() string        { return "PowerDownSkill" }
func (s *powerDownSkill) Description() string { return "Shuts the assistant down on request" }
func (s *powerDownSkill) Version() string     { return version.Version }
func (s *powerDownSkill) Stop() error         { return nil }

func (s *powerDownSkill) Initialize(dev *Device) error {
	phrases := []string{"power down", "shut down", "turn yourself off"}
	return dev.Manager().Bind(s, "power_down", phrases, func(_ Intent, ctx *core.Context, _ string) bool {
		resp := dev.Ask("Are you sure you want me to power down?", func(answer string, answerCtx *core.Context) {
			if normalize(answer) != "yes" {
				dev.Say("Okay, staying online", answerCtx)
				return
			}
			service := dev.Service()
			if service == nil {
				return
			}
			cmd := core.NewCommand("shutdown")
			cmd.URL = service.LocalURL()
			if err := service.SendCommand(cmd, false); err == nil {
				dev.Say("Powering down", answerCtx)
			}
		}, 0, ctx)
		return resp.IsSuccess()
	})
}
