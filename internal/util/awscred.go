// Copyright (c) 2024 Scout Analytics, Inc. All rights reserved.

package util

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// AWS IAM credential file paths (vault-injected in Kubernetes deployments)
const (
	DefaultAWSKeyFile  = "/vault/secrets/awsassetpipelinekey"
	DefaultAWSPassFile = "/vault/secrets/awsassetpipelinepass"

	// DBPasswordEnv allows bypassing Secrets Manager lookups (e.g., smoketests/local).
	// When set (even to an empty string), ResolveDBPassword returns the value directly.
	DBPasswordEnv = "ASSET_PIPELINE_DB_PASSWORD" //nolint:gosec // env var name, not a credential
)

// LoadAWSCredentialsFromVault points the AWS SDK at vault-injected credential
// files when nothing else supplies credentials. A no-op when the environment
// already carries credentials or the vault files are absent, in which case the
// SDK default chain (env vars, shared config, SSO cache, IAM roles) applies.
func LoadAWSCredentialsFromVault() {
	if os.Getenv("AWS_ACCESS_KEY_ID") != "" && os.Getenv("AWS_SECRET_ACCESS_KEY") != "" {
		return
	}

	if os.Getenv("AWS_ACCESS_KEY_ID") == "" {
		if content, err := os.ReadFile(DefaultAWSKeyFile); err == nil {
			_ = os.Setenv("AWS_ACCESS_KEY_ID", strings.TrimSpace(string(content)))
		}
	}

	if os.Getenv("AWS_SECRET_ACCESS_KEY") == "" {
		if content, err := os.ReadFile(DefaultAWSPassFile); err == nil {
			_ = os.Setenv("AWS_SECRET_ACCESS_KEY", strings.TrimSpace(string(content)))
		}
	}
}

// GetPasswordFromSecretsManager retrieves the store password from AWS Secrets
// Manager. The secret JSON is expected to contain a "password" field.
func GetPasswordFromSecretsManager(secretName, region string) (string, error) {
	if secretName == "" {
		return "", fmt.Errorf("secret name is required for Secrets Manager")
	}
	if region == "" {
		return "", fmt.Errorf("region is required for Secrets Manager")
	}

	ctx := context.Background()
	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(region),
	)
	if err != nil {
		return "", fmt.Errorf("create AWS config: %w", err)
	}

	svc := secretsmanager.NewFromConfig(awsCfg)
	out, err := svc.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId:     aws.String(secretName),
		VersionStage: aws.String("AWSCURRENT"),
	})
	if err != nil {
		return "", fmt.Errorf("get secret value: %w", err)
	}
	if out.SecretString == nil {
		return "", fmt.Errorf("secret string empty for %s", secretName)
	}

	var payload struct {
		Password string `json:"password"`
	}
	if err := json.Unmarshal([]byte(*out.SecretString), &payload); err != nil {
		return "", fmt.Errorf("parse secret json: %w", err)
	}
	if payload.Password == "" {
		return "", fmt.Errorf("password field empty in secret %s", secretName)
	}

	return payload.Password, nil
}

// ResolveDBPassword returns the store password. If DBPasswordEnv is set (even
// to an empty string), that value is returned. Otherwise, the password is
// fetched from AWS Secrets Manager using the provided secret and region.
func ResolveDBPassword(secretName, region string) (string, error) {
	if pwd, ok := os.LookupEnv(DBPasswordEnv); ok {
		return pwd, nil
	}
	return GetPasswordFromSecretsManager(secretName, region)
}
