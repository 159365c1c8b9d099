package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/spf13/cobra"

	"menu-planner/handler"
	"menu-planner/internal/auth"
	"menu-planner/internal/config"
	"menu-planner/internal/integrations/minglers"
	"menu-planner/internal/integrations/paramstore"
	"menu-planner/internal/integrations/recommender"
	"menu-planner/internal/integrations/upstream"
	"menu-planner/internal/metrics"
	"menu-planner/internal/repository"
	"menu-planner/internal/usecase"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		slog.Error("menu-planner failed", "err", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	lambdaCmd := &cobra.Command{
		Use:   "lambda",
		Short: "Serve API Gateway proxy events (default)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLambda(cmd.Context())
		},
	}
	root := &cobra.Command{
		Use:           "menu-planner",
		Short:         "Household menu planning API",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          lambdaCmd.RunE,
	}
	root.AddCommand(lambdaCmd, newServeCmd())
	return root
}

func runLambda(ctx context.Context) error {
	cfg, err := config.Load(os.Getenv)
	if err != nil {
		return err
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel})))

	a, err := buildApp(ctx, cfg, nil)
	if err != nil {
		return err
	}
	lambda.Start(a.handler.Handle)
	return nil
}

type app struct {
	handler     *handler.Handler
	recommender *recommender.Client
}

// buildApp wires stores, upstream clients and use cases. m may be nil.
func buildApp(ctx context.Context, cfg config.Config, m *metrics.Metrics) (*app, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	dynamoClient := awsdynamodb.NewFromConfig(awsCfg, func(o *awsdynamodb.Options) {
		if cfg.DynamoDBEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.DynamoDBEndpoint)
		}
	})
	store, err := repository.New(dynamoClient, cfg.StateTable)
	if err != nil {
		return nil, fmt.Errorf("create state store: %w", err)
	}

	keys, err := signingKey(cfg, awsCfg)
	if err != nil {
		return nil, err
	}
	issuer, err := auth.NewIssuer(keys, cfg.JWTIssuer, cfg.JWTAudience)
	if err != nil {
		return nil, fmt.Errorf("create token issuer: %w", err)
	}

	recClient, err := recommender.New(cfg.RecommenderURL, upstream.WithTimeout(cfg.RecommenderTimeout))
	if err != nil {
		return nil, fmt.Errorf("create recommender client: %w", err)
	}
	engine, err := minglers.New(cfg.MinglersURL, upstream.WithTimeout(cfg.DiscussionSubmitTimeout))
	if err != nil {
		return nil, fmt.Errorf("create discussion engine client: %w", err)
	}

	accounts, err := usecase.NewAccountService(store, store, issuer)
	if err != nil {
		return nil, fmt.Errorf("create account service: %w", err)
	}
	planning, err := usecase.NewPlanningService(store, recClient, cfg.PlanningTopK)
	if err != nil {
		return nil, fmt.Errorf("create planning service: %w", err)
	}
	discussion, err := usecase.NewDiscussionService(store, store, store, recClient, engine, usecase.DiscussionConfig{
		RecommendTopK:    cfg.DiscussionRecommendTopK,
		RecommendTimeout: cfg.RecommenderTimeout,
		SubmitTimeout:    cfg.DiscussionSubmitTimeout,
		PollTimeout:      cfg.DiscussionPollTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("create discussion service: %w", err)
	}

	deps := handler.Deps{
		Accounts:   accounts,
		Planning:   planning,
		Discussion: discussion,
		Tokens:     issuer,
	}
	if m != nil {
		deps.Metrics = m
	}
	h, err := handler.NewHandler(deps, handler.Options{
		AllowedOrigins:       cfg.CORSAllowedOrigins,
		DiscussionStartRPS:   cfg.DiscussionStartRPS,
		DiscussionStartBurst: cfg.DiscussionStartBurst,
	})
	if err != nil {
		return nil, fmt.Errorf("create handler: %w", err)
	}
	return &app{handler: h, recommender: recClient}, nil
}

// signingKey prefers JWT_KEY and otherwise reads the key lazily from SSM.
func signingKey(cfg config.Config, awsCfg aws.Config) (auth.KeyProvider, error) {
	if cfg.JWTKey != "" {
		return auth.StaticKey(cfg.JWTKey), nil
	}
	ssmClient, err := paramstore.New(awsssm.NewFromConfig(awsCfg))
	if err != nil {
		return nil, fmt.Errorf("create SSM client: %w", err)
	}
	secret, err := paramstore.NewSecret(ssmClient, cfg.JWTKeyParameter(), "key")
	if err != nil {
		return nil, fmt.Errorf("create signing key source: %w", err)
	}
	return secret, nil
}
