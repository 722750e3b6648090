// =============================================================================
// pkg/group/group.go - Process Group Bootstrap
// =============================================================================
//
// This package provides the collective substrate the benchmark runs on:
//   - Local: every rank is a goroutine of one process (also used for size 1)
//   - TCPGroup: one OS process per rank, rank 0 relays all collectives
//
// IDENTITY RESOLUTION:
//   Rank and size come from explicit values first, then from the environment
//   of common launchers, in this order:
//
//	HEPBENCH_RANK / HEPBENCH_SIZE
//	OMPI_COMM_WORLD_RANK / OMPI_COMM_WORLD_SIZE   (Open MPI mpirun)
//	PMI_RANK / PMI_SIZE                           (MPICH, Intel MPI)
//	SLURM_PROCID / SLURM_NTASKS                   (srun)
//
//   With none of them the process runs alone as rank 0 of 1.
//
// =============================================================================

package group

import (
	"context"
	"fmt"
	"strconv"

	"github.com/karthikiyer56/hepnos-store-benchmark/store-benchmark/pkg/interfaces"
	"github.com/karthikiyer56/hepnos-store-benchmark/store-benchmark/pkg/types"
)

// CoordinatorEnv names the environment variable holding rank 0's address.
const CoordinatorEnv = "HEPBENCH_COORDINATOR"

// launcherEnv lists (rank, size) variable pairs in lookup order.
var launcherEnv = [][2]string{
	{"HEPBENCH_RANK", "HEPBENCH_SIZE"},
	{"OMPI_COMM_WORLD_RANK", "OMPI_COMM_WORLD_SIZE"},
	{"PMI_RANK", "PMI_SIZE"},
	{"SLURM_PROCID", "SLURM_NTASKS"},
}

// LookupFunc has the signature of os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// ResolveIdentity determines this process's rank and size. Negative rank or
// size means "not given" and falls through to the environment.
func ResolveIdentity(rank, size int, lookup LookupFunc) (types.ProcessIdentity, error) {
	if rank < 0 || size < 0 {
		for _, pair := range launcherEnv {
			r, rok := lookup(pair[0])
			s, sok := lookup(pair[1])
			if !rok || !sok {
				continue
			}
			er, err := strconv.Atoi(r)
			if err != nil {
				return types.ProcessIdentity{}, fmt.Errorf("invalid %s=%q: %w", pair[0], r, err)
			}
			es, err := strconv.Atoi(s)
			if err != nil {
				return types.ProcessIdentity{}, fmt.Errorf("invalid %s=%q: %w", pair[1], s, err)
			}
			if rank < 0 {
				rank = er
			}
			if size < 0 {
				size = es
			}
			break
		}
	}
	if rank < 0 {
		rank = 0
	}
	if size < 0 {
		size = 1
	}

	id := types.ProcessIdentity{Rank: rank, Size: size}
	if !id.Valid() {
		return types.ProcessIdentity{}, fmt.Errorf("invalid process identity rank=%d size=%d", rank, size)
	}
	return id, nil
}

// ResolveCoordinator returns addr, or the coordinator environment variable.
func ResolveCoordinator(addr string, lookup LookupFunc) string {
	if addr != "" {
		return addr
	}
	if v, ok := lookup(CoordinatorEnv); ok {
		return v
	}
	return ""
}

// Join connects this process to its group. A group of one needs no
// coordinator and is served by a Local group.
func Join(ctx context.Context, id types.ProcessIdentity, coordinator string, opts TCPOptions) (interfaces.Group, error) {
	if id.Size == 1 {
		return NewLocal(1).Member(0), nil
	}
	if coordinator == "" {
		return nil, fmt.Errorf("group of %d ranks needs a coordinator address (--coordinator or %s)", id.Size, CoordinatorEnv)
	}

	if id.Rank == 0 {
		g, err := ListenTCP(coordinator, id.Size, opts)
		if err != nil {
			return nil, err
		}
		if err := g.AwaitPeers(ctx); err != nil {
			return nil, err
		}
		return g, nil
	}
	return DialTCP(ctx, coordinator, id.Rank, id.Size, opts)
}
