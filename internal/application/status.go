package application

import (
	"context"
	"errors"
	"fmt"

	"txsync/internal/domain"
)

type NetworkStatus struct {
	Network      domain.Network
	Activity     *domain.AddressActivity
	Head         *domain.NetworkHead
	Transactions int
	Err          error
}

// ReadStatus reports what is stored for an address on each network. A network
// whose namespace cannot be read carries its error and does not stop the rest.
// A network that was never ingested reports empty status.
func ReadStatus(ctx context.Context, opener NamespaceOpener, address string, networks []domain.Network) []NetworkStatus {
	statuses := make([]NetworkStatus, 0, len(networks))
	for _, network := range networks {
		status := NetworkStatus{Network: network}
		if err := readStatus(ctx, opener, address, &status); err != nil {
			status.Err = err
		}
		statuses = append(statuses, status)
	}
	return statuses
}

func readStatus(ctx context.Context, opener NamespaceOpener, address string, status *NetworkStatus) error {
	ns, err := opener.Open(ctx, status.Network)
	if errors.Is(err, ErrNamespaceNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("open namespace %s: %w", status.Network.Namespace, err)
	}
	defer ns.Close()

	activity, ok, err := ns.AddressActivity(ctx, address)
	if err != nil {
		return fmt.Errorf("read address activity: %w", err)
	}
	if ok {
		status.Activity = &activity
	}

	head, ok, err := ns.NetworkHead(ctx)
	if err != nil {
		return fmt.Errorf("read network head: %w", err)
	}
	if ok {
		status.Head = &head
	}

	count, err := ns.CountTransactions(ctx)
	if err != nil {
		return fmt.Errorf("count transactions: %w", err)
	}
	status.Transactions = count
	return nil
}
