package elastic

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// SecretsManagerClient defines the interface for AWS Secrets Manager operations.
type SecretsManagerClient interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// AWSSecrets returns a FetchSecrets function that reads the cluster settings
// from AWS Secrets Manager at "{environment}/elasticsearch". The secret holds
// JSON with node and api_key fields.
func AWSSecrets(ctx context.Context, client SecretsManagerClient, env string) FetchSecrets {
	secretPath := fmt.Sprintf("%s/elasticsearch", env)
	return secretsFrom(ctx, client, secretPath, "at path")
}

// AWSSecretsFromARN is AWSSecrets for a secret addressed by ARN.
func AWSSecretsFromARN(ctx context.Context, client SecretsManagerClient, secretArn string) FetchSecrets {
	return secretsFrom(ctx, client, secretArn, "with ARN")
}

func secretsFrom(ctx context.Context, client SecretsManagerClient, secretID, describe string) FetchSecrets {
	return func() (Secrets, error) {
		input := &secretsmanager.GetSecretValueInput{
			SecretId: aws.String(secretID),
		}

		result, err := client.GetSecretValue(ctx, input)
		if err != nil {
			return Secrets{}, fmt.Errorf("failed to get secret from AWS Secrets Manager %s %s: %w", describe, secretID, err)
		}

		if result.SecretString == nil {
			return Secrets{}, fmt.Errorf("secret %s %s has no string value", describe, secretID)
		}

		var secrets Secrets
		if err := json.Unmarshal([]byte(aws.ToString(result.SecretString)), &secrets); err != nil {
			return Secrets{}, fmt.Errorf("failed to unmarshal secret JSON %s %s: %w", describe, secretID, err)
		}

		return secrets, nil
	}
}
