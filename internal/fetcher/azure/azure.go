package azure

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/arm"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/resources/armresources"

	"opguide/internal/config"
	"opguide/internal/domain"
)

const listExpand = "createdTime,changedTime,provisioningState"

// Fetcher lists every resource of a subscription through Azure Resource
// Manager. Credentials are read from the environment on every call.
type Fetcher struct {
	loadConfig func() (config.AzureConfig, error)
	log        *slog.Logger
}

func NewFetcher(log *slog.Logger) *Fetcher {
	return &Fetcher{
		loadConfig: config.LoadAzure,
		log:        log,
	}
}

func (f *Fetcher) Name() string {
	return "azure"
}

// Fetch returns the whole resource list or an error; a partially listed
// subscription is never returned.
func (f *Fetcher) Fetch(ctx context.Context) ([]domain.Resource, error) {
	cfg, err := f.loadConfig()
	if err != nil {
		return nil, err
	}

	cred, err := newCredential(cfg)
	if err != nil {
		return nil, fmt.Errorf("create credential: %w", err)
	}

	client, err := armresources.NewClient(cfg.SubscriptionID, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("create resources client: %w", err)
	}

	var resources []domain.Resource

	pager := client.NewListPager(&armresources.ClientListOptions{
		Expand: to.Ptr(listExpand),
	})
	for pager.More() {
		page, pageErr := pager.NextPage(ctx)
		if pageErr != nil {
			return nil, fmt.Errorf("list resources: %w", pageErr)
		}

		for _, generic := range page.Value {
			if generic == nil {
				continue
			}
			resources = append(resources, toResource(ctx, generic, f.log))
		}
	}

	f.log.InfoContext(ctx, "Azure resources are listed",
		"subscriptionID", cfg.SubscriptionID,
		"count", len(resources))

	return resources, nil
}

func newCredential(cfg config.AzureConfig) (azcore.TokenCredential, error) {
	if strings.TrimSpace(cfg.ClientSecret) != "" {
		return azidentity.NewClientSecretCredential(cfg.TenantID, cfg.ClientID, cfg.ClientSecret, nil)
	}

	return azidentity.NewManagedIdentityCredential(&azidentity.ManagedIdentityCredentialOptions{
		ID: azidentity.ClientID(cfg.ClientID),
	})
}

type configuration struct {
	Kind       string            `json:"kind,omitempty"`
	SKU        *armresources.SKU `json:"sku,omitempty"`
	Tags       map[string]string `json:"tags,omitempty"`
	ManagedBy  string            `json:"managedBy,omitempty"`
	Properties any               `json:"properties,omitempty"`
}

type usage struct {
	ProvisioningState string     `json:"provisioningState,omitempty"`
	CreatedTime       *time.Time `json:"createdTime,omitempty"`
	ChangedTime       *time.Time `json:"changedTime,omitempty"`
}

func toResource(ctx context.Context, g *armresources.GenericResourceExpanded, log *slog.Logger) domain.Resource {
	r := domain.Resource{
		ID:       deref(g.ID),
		Name:     deref(g.Name),
		Type:     deref(g.Type),
		Location: deref(g.Location),
	}

	if r.ID != "" {
		if id, err := arm.ParseResourceID(r.ID); err == nil {
			r.ResourceGroup = id.ResourceGroupName
		} else {
			log.WarnContext(ctx, "Failed to parse resource ID",
				"error", err,
				"resourceID", r.ID)
		}
	}

	tags := make(map[string]string, len(g.Tags))
	for k, v := range g.Tags {
		tags[k] = deref(v)
	}

	r.Configuration = marshal(configuration{
		Kind:       deref(g.Kind),
		SKU:        g.SKU,
		Tags:       tags,
		ManagedBy:  deref(g.ManagedBy),
		Properties: g.Properties,
	})
	r.Usage = marshal(usage{
		ProvisioningState: deref(g.ProvisioningState),
		CreatedTime:       g.CreatedTime,
		ChangedTime:       g.ChangedTime,
	})

	return r
}

func marshal(v any) string {
	data, err := json.Marshal(v)
	if err != nil || string(data) == "{}" {
		return ""
	}
	return string(data)
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
