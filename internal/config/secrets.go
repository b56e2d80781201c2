package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

type DBCredentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type PaypalCredentials struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
}

// SecretFetcher lê um segredo JSON e decodifica em out.
type SecretFetcher interface {
	FetchJSON(ctx context.Context, secretID string, out any) error
}

type secretsAPI interface {
	GetSecretValue(ctx context.Context, in *secretsmanager.GetSecretValueInput, opts ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// AWSSecrets busca segredos no AWS Secrets Manager. O cliente é criado na
// primeira consulta, então ambientes sem AWS não pagam nada.
type AWSSecrets struct {
	client secretsAPI
}

func NewAWSSecrets() *AWSSecrets { return &AWSSecrets{} }

func (s *AWSSecrets) api(ctx context.Context) (secretsAPI, error) {
	if s.client != nil {
		return s.client, nil
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("config aws: %w", err)
	}
	s.client = secretsmanager.NewFromConfig(cfg)
	return s.client, nil
}

func (s *AWSSecrets) FetchJSON(ctx context.Context, secretID string, out any) error {
	api, err := s.api(ctx)
	if err != nil {
		return err
	}
	result, err := api.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId:     aws.String(secretID),
		VersionStage: aws.String("AWSCURRENT"),
	})
	if err != nil {
		return fmt.Errorf("secret %s: %w", secretID, err)
	}
	if result.SecretString == nil {
		return errors.New("secret " + secretID + " sem SecretString")
	}
	if err := json.Unmarshal([]byte(*result.SecretString), out); err != nil {
		return fmt.Errorf("secret %s: json inválido: %w", secretID, err)
	}
	return nil
}
