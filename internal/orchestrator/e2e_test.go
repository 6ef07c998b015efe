package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/bulksend/api/schemas"
	"github.com/xkilldash9x/bulksend/internal/config"
	"github.com/xkilldash9x/bulksend/internal/delivery"
	"github.com/xkilldash9x/bulksend/internal/locator"
	"github.com/xkilldash9x/bulksend/internal/mocks"
	"github.com/xkilldash9x/bulksend/internal/pacing"
)

func TestBatch_SentInvalidSendFailed(t *testing.T) {
	logger := zaptest.NewLogger(t)
	ladders := locator.DefaultLadders()

	sendXPath := "//button[@aria-label='Send']"
	invalidXPath := "//*[contains(text(), 'Phone number shared via url is invalid.')]"

	session := mocks.NewScriptedSession(mocks.Page{})
	session.Pages["+911111111111"] = mocks.Page{sendXPath: {Name: "send"}}
	session.Pages["+912222222222"] = mocks.Page{
		invalidXPath: {Name: "banner"},
		sendXPath:    {Name: "send"},
	}

	contacts := []schemas.Contact{
		{Row: 1, Name: "Ravi Kumar", RawNumber: "01111111111", Normalized: schemas.NormalizedContact{E164Number: "+911111111111", GreetingName: "Ravi"}},
		{Row: 2, Name: "Dr Mehta", RawNumber: "02222222222", Normalized: schemas.NormalizedContact{E164Number: "+912222222222", GreetingName: "Mehta"}},
		{Row: 3, Name: "Anu", RawNumber: "03333333333", Normalized: schemas.NormalizedContact{E164Number: "+913333333333", GreetingName: "Anu"}},
	}

	var cleanups int
	hook := func(tr delivery.Transition) {
		if tr.To == delivery.StateCleanup {
			cleanups++
		}
	}
	locCfg := config.LocatorConfig{
		PerLocatorTimeout:    50 * time.Millisecond,
		ValidityProbeTimeout: 50 * time.Millisecond,
		CleanupTimeout:       time.Second,
		TransientRetryBudget: 1,
	}
	noWait := pacing.SleeperFunc(func(ctx context.Context, d time.Duration) error { return nil })
	scheduler := pacing.NewScheduler(fixedPacing(), logger, pacing.WithSleeper(noWait))
	machine := delivery.NewMachine(session, locator.NewResolver(logger), ladders, locCfg, logger,
		delivery.WithSettler(scheduler), delivery.WithTransitionHook(hook))

	p, err := New(scheduler, logger)
	require.NoError(t, err)

	result, err := p.Run(context.Background(), machine, contacts, textFor)
	require.NoError(t, err)

	require.Equal(t, 3, result.Len())
	assert.Equal(t, schemas.Sent(), result.Records[0].Outcome)
	assert.Equal(t, schemas.InvalidNumber(), result.Records[1].Outcome)
	assert.Equal(t, schemas.OutcomeSendFailed, result.Records[2].Outcome.Kind)
	for i, rec := range result.Records {
		assert.Equal(t, contacts[i], rec.Contact)
	}

	invalid := result.Invalid()
	require.Len(t, invalid, 1)
	assert.Equal(t, contacts[1], invalid[0].Contact)

	assert.Equal(t, 3, cleanups)
	assert.Equal(t, 3, session.Count("close"))
	assert.Equal(t, 1, session.Count("click:send"), "the invalid contact never reaches the send step")
	assert.False(t, session.IsOpen())
}
