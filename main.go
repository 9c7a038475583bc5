package main

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	contractx "github.com/voyago/voyago/agent/contract"
	flightx "github.com/voyago/voyago/agent/flight"
	llmx "github.com/voyago/voyago/agent/llm"
	orchestratex "github.com/voyago/voyago/agent/orchestrate"
	planx "github.com/voyago/voyago/agent/plan"
	promptx "github.com/voyago/voyago/agent/prompt"
	providersx "github.com/voyago/voyago/agent/providers"
	statex "github.com/voyago/voyago/agent/state"
	toolx "github.com/voyago/voyago/agent/tool"
	configx "github.com/voyago/voyago/pkg/config"
	logx "github.com/voyago/voyago/pkg/logger"
	openrouterx "github.com/voyago/voyago/pkg/openrouter"
)

func main() {
	logCfg := configx.MustNew[logx.Config]("LOG")
	logx.Init(*logCfg)

	ctx := context.Background()

	registry := toolx.NewRegistry()
	registerProviders(registry)

	dispatcher, err := toolx.NewDispatcher(registry,
		toolx.WithDefaultTimeout(10*time.Second),
		toolx.WithToolTimeout(providersx.ToolFlightsSearch, 15*time.Second),
		toolx.WithToolTimeout(providersx.ToolWeatherCurrent, 4*time.Second),
	)
	if err != nil {
		log.Fatal().Err(err).Msg("create dispatcher")
	}

	normalizer := toolx.NewNormalizer(registry, map[string]toolx.RewriteRule{
		providersx.ToolFlightsSearch: {
			CompletionTool: providersx.ToolFlightsBook,
			IdentifierArg:  "offer_id",
			SourceStep:     "flight_result",
			SourceListKey:  "offers",
			SourceIDKey:    "id",
		},
		providersx.ToolHotelsSearch: {
			CompletionTool: providersx.ToolHotelsBook,
			IdentifierArg:  "offer_id",
			SourceStep:     "hotel_result",
			SourceListKey:  "offers",
			SourceIDKey:    "id",
		},
	})

	llmCfg := configx.MustNew[llmx.Config]("OPENROUTER")
	if err := llmCfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid llm config")
	}
	prompts := promptx.LoadPromptSet()

	judgeModelCfg := llmCfg.OpenRouterForJudge()
	judgeModel, err := judgeModelCfg.New(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("create judge model")
	}
	judge, err := orchestratex.NewLLMJudge(ctx, judgeModel, prompts.Judge)
	if err != nil {
		log.Fatal().Err(err).Msg("create judge")
	}

	reviserClient := openrouterx.NewClient(llmCfg.OpenRouter())
	reviser, err := orchestratex.NewLLMReviser(reviserClient, llmCfg.Model, prompts.Reviser)
	if err != nil {
		log.Fatal().Err(err).Msg("create reviser")
	}

	controller, err := orchestratex.NewController(dispatcher, judge, orchestratex.WithReviser(reviser))
	if err != nil {
		log.Fatal().Err(err).Msg("create controller")
	}

	task := statex.NewTaskState("find a round trip from BKK to NRT around 2025-12-10, flexible by 5 days", time.Now())

	splitter, err := flightx.NewSplitter(dispatcher, providersx.ToolFlightsSearch)
	if err != nil {
		log.Fatal().Err(err).Msg("create splitter")
	}
	trip, err := splitter.Search(ctx, flightx.Query{
		TripType:    flightx.TripRoundTrip,
		Origin:      "BKK",
		Destination: "NRT",
		Date:        "2025-12-10",
		FlexDays:    5,
		Passengers:  1,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("round trip search")
	}
	log.Info().
		Bool("error", trip.Error).
		Int("outbound", len(trip.Outbound)).
		Int("return", len(trip.Return)).
		Str("note", trip.Note).
		Msg("round trip result")

	toolName, args := normalizer.Normalize(providersx.ToolWeatherCurrent, map[string]any{"city": "Tokyo"}, task.Description, task)
	outcome, err := controller.RunStep(ctx, task, "weather_result", contractx.InvocationRequest{Tool: toolName, Args: args})
	if err != nil {
		log.Fatal().Err(err).Msg("run step")
	}
	log.Info().
		Str("state", string(outcome.State)).
		Int("attempts", outcome.Attempts).
		Msg("step outcome")

	snapshotTask(ctx, task)
	persistDecisions(ctx, task)
}

// snapshotTask writes the final task state to Redis so a follow-up
// conversation can resume it. Optional: without REDIS_URL the state stays
// in memory only.
func snapshotTask(ctx context.Context, task *statex.TaskState) {
	redisCfg, err := configx.New[statex.UpstashRedisConfig]("REDIS")
	if err != nil {
		log.Info().Msg("snapshot store not configured, skipping")
		return
	}
	store, err := statex.NewUpstashRedisStore(*redisCfg)
	if err != nil {
		log.Warn().Err(err).Msg("create snapshot store")
		return
	}
	if err := store.Save(ctx, task); err != nil {
		log.Warn().Err(err).Str("task_id", task.TaskID).Msg("save task snapshot")
	}
}

func registerProviders(registry *toolx.Registry) {
	flightsCfg := configx.MustNew[providersx.Config]("FLIGHTS")
	flights, err := providersx.NewFlightsProvider(*flightsCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("create flights provider")
	}
	if err := flights.Register(registry); err != nil {
		log.Fatal().Err(err).Msg("register flights tools")
	}

	hotelsCfg := configx.MustNew[providersx.Config]("HOTELS")
	hotels, err := providersx.NewHotelsProvider(*hotelsCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("create hotels provider")
	}
	if err := hotels.Register(registry); err != nil {
		log.Fatal().Err(err).Msg("register hotels tools")
	}

	utilitiesCfg := configx.MustNew[providersx.Config]("UTILITIES")
	utilities, err := providersx.NewUtilitiesProvider(*utilitiesCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("create utilities provider")
	}
	if err := utilities.Register(registry); err != nil {
		log.Fatal().Err(err).Msg("register utilities tools")
	}
}

// persistDecisions hands the task's accepted results to the plan database.
// The store is optional: without PLAN_DSN the task state stays in memory
// and is discarded with the task.
func persistDecisions(ctx context.Context, task *statex.TaskState) {
	planCfg, err := configx.New[planx.Config]("PLAN")
	if err != nil {
		log.Info().Msg("plan store not configured, skipping persistence")
		return
	}
	store, err := planx.NewBunStore(*planCfg)
	if err != nil {
		log.Warn().Err(err).Msg("create plan store")
		return
	}
	defer store.Close()

	if err := store.Init(ctx); err != nil {
		log.Warn().Err(err).Msg("init plan store")
		return
	}
	for step, payload := range task.Results {
		decision := contractx.TaskDecision{
			TaskID:    task.TaskID,
			Step:      step,
			Payload:   payload,
			DecidedAt: task.UpdatedAt,
		}
		if err := store.SaveDecision(ctx, decision); err != nil {
			log.Warn().Err(err).Str("step", step).Msg("save decision")
		}
	}
}
