package config

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// resolveAWSSecretsManager resolves a ${AWS_SM:name} target credential
// reference, against secrets.aws_region when one is configured.
func resolveAWSSecretsManager(ref string, secrets SecretsConfig) (string, error) {
	ctx := context.Background()

	var loadOpts []func(*awsconfig.LoadOptions) error
	if secrets.AWSRegion != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(secrets.AWSRegion))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return "", fmt.Errorf("loading AWS config: %w", err)
	}

	client := secretsmanager.NewFromConfig(cfg)
	out, err := client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(ref),
	})
	if err != nil {
		return "", fmt.Errorf("reading target credential %q from Secrets Manager: %w", ref, err)
	}

	if out.SecretString == nil {
		return "", fmt.Errorf("secret %q has no string value (binary secrets not supported)", ref)
	}

	return *out.SecretString, nil
}
