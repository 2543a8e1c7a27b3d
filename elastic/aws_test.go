package elastic

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// mockSecretsManagerClient implements SecretsManagerClient for testing
type mockSecretsManagerClient struct {
	secretValue *string
	err         error
	requested   string
}

func (m *mockSecretsManagerClient) GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	m.requested = aws.ToString(params.SecretId)
	if m.err != nil {
		return nil, m.err
	}

	return &secretsmanager.GetSecretValueOutput{
		SecretString: m.secretValue,
	}, nil
}

func TestAWSSecrets(t *testing.T) {
	tests := []struct {
		name        string
		env         string
		client      *mockSecretsManagerClient
		expected    Secrets
		expectedErr string
	}{
		{
			name:     "node and key",
			env:      "production",
			client:   &mockSecretsManagerClient{secretValue: aws.String(`{"node":"https://es.internal:9200","api_key":"abc"}`)},
			expected: Secrets{Node: "https://es.internal:9200", APIKey: "abc"},
		},
		{
			name:     "key is optional",
			env:      "staging",
			client:   &mockSecretsManagerClient{secretValue: aws.String(`{"node":"http://localhost:9200"}`)},
			expected: Secrets{Node: "http://localhost:9200"},
		},
		{
			name:        "secrets manager error",
			env:         "production",
			client:      &mockSecretsManagerClient{err: errors.New("secrets manager error")},
			expectedErr: "failed to get secret from AWS Secrets Manager at path production/elasticsearch",
		},
		{
			name:        "nil secret string",
			env:         "production",
			client:      &mockSecretsManagerClient{},
			expectedErr: "secret at path production/elasticsearch has no string value",
		},
		{
			name:        "invalid json",
			env:         "production",
			client:      &mockSecretsManagerClient{secretValue: aws.String(`{"node":}`)},
			expectedErr: "failed to unmarshal secret JSON at path production/elasticsearch",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			secrets, err := AWSSecrets(context.Background(), tt.client, tt.env)()

			if want := tt.env + "/elasticsearch"; tt.client.requested != want {
				t.Errorf("Expected secret id %q, got %q", want, tt.client.requested)
			}

			if tt.expectedErr != "" {
				if err == nil {
					t.Fatal("Expected error, got nil")
				}
				if !strings.Contains(err.Error(), tt.expectedErr) {
					t.Errorf("Expected error to contain '%s', got '%s'", tt.expectedErr, err.Error())
				}
				return
			}

			if err != nil {
				t.Fatalf("Expected no error, got %v", err)
			}
			if secrets != tt.expected {
				t.Errorf("Expected %#v, got %#v", tt.expected, secrets)
			}
		})
	}
}

func TestAWSSecretsFromARN(t *testing.T) {
	arn := "arn:aws:secretsmanager:us-east-1:123456789012:secret:prod/elasticsearch-AbCdEf"
	client := &mockSecretsManagerClient{secretValue: aws.String(`{"node":"https://es:9200","api_key":"k"}`)}

	secrets, err := AWSSecretsFromARN(context.Background(), client, arn)()
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if client.requested != arn {
		t.Errorf("Expected secret id %q, got %q", arn, client.requested)
	}
	if secrets.Node != "https://es:9200" || secrets.APIKey != "k" {
		t.Errorf("Unexpected secrets: %#v", secrets)
	}

	client = &mockSecretsManagerClient{}
	_, err = AWSSecretsFromARN(context.Background(), client, arn)()
	if err == nil || !strings.Contains(err.Error(), "with ARN "+arn) {
		t.Errorf("Expected ARN in error, got %v", err)
	}
}

func TestEnvSecrets(t *testing.T) {
	t.Setenv("ELASTICSEARCH_NODE", "")
	t.Setenv("ELASTICSEARCH_API_KEY", "")
	if _, err := EnvSecrets()(); err == nil {
		t.Error("Expected error when ELASTICSEARCH_NODE is unset")
	}

	t.Setenv("ELASTICSEARCH_NODE", "http://localhost:9200")
	secrets, err := EnvSecrets()()
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if secrets.Node != "http://localhost:9200" || secrets.APIKey != "" {
		t.Errorf("Unexpected secrets: %#v", secrets)
	}

	t.Setenv("ELASTICSEARCH_API_KEY", "secret")
	secrets, _ = EnvSecrets()()
	if secrets.APIKey != "secret" {
		t.Errorf("Expected API key from env, got %q", secrets.APIKey)
	}
}
