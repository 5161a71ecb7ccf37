package kv

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/bytedance/sonic"
)

const azPartition = "calplan"

// AzTables stores one entity per key in an Azure Storage table. Values are
// kept as a string property, so they must be UTF-8 and under 32K characters.
type AzTables struct {
	client *aztables.Client
}

type kvEntity struct {
	aztables.Entity
	Value string `json:"Value"`
}

func OpenAzTables(ctx context.Context, connStr, table string) (*AzTables, error) {
	opts := aztables.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    3,
				TryTimeout:    time.Minute,
				RetryDelay:    time.Second,
				MaxRetryDelay: 15 * time.Second,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	svc, err := aztables.NewServiceClientFromConnectionString(connStr, &opts)
	if err != nil {
		return nil, fmt.Errorf("aztables client: %w", err)
	}
	client := svc.NewClient(table)
	if _, err := client.CreateTable(ctx, nil); err != nil {
		var respErr *azcore.ResponseError
		if !(errors.As(err, &respErr) && respErr.ErrorCode == string(aztables.TableAlreadyExists)) {
			return nil, fmt.Errorf("create table %s: %w", table, err)
		}
	}
	return &AzTables{client: client}, nil
}

// rowKey escapes characters the Table service forbids in keys.
func rowKey(key string) string {
	return url.PathEscape(key)
}

func (a *AzTables) Get(ctx context.Context, key string) ([]byte, error) {
	resp, err := a.client.GetEntity(ctx, azPartition, rowKey(key), nil)
	if err != nil {
		var respErr *azcore.ResponseError
		if errors.As(err, &respErr) && respErr.StatusCode == http.StatusNotFound {
			return nil, ErrNotFound
		}
		return nil, err
	}
	var ent kvEntity
	if err := sonic.Unmarshal(resp.Value, &ent); err != nil {
		return nil, fmt.Errorf("decode entity: %w", err)
	}
	return []byte(ent.Value), nil
}

func (a *AzTables) Set(ctx context.Context, key string, value []byte) error {
	ent := kvEntity{
		Entity: aztables.Entity{PartitionKey: azPartition, RowKey: rowKey(key)},
		Value:  string(value),
	}
	payload, err := sonic.Marshal(ent)
	if err != nil {
		return err
	}
	_, err = a.client.UpsertEntity(ctx, payload, &aztables.UpsertEntityOptions{UpdateMode: aztables.UpdateModeReplace})
	return err
}

func (a *AzTables) Close() error { return nil }
