package patrol

import (
	"math/big"
	"sort"
)

// Apportion splits total officers across hotspots in proportion to their
// incident counts. incidents must be in rank order; the result has the same
// order. When total >= len(incidents) every hotspot gets at least one officer
// and the allocations sum to exactly total. Otherwise the sum never exceeds
// total. Runs in O(n log n) whatever the size of total.
func Apportion(incidents []int, total int) []int {
	n := len(incidents)
	if n == 0 {
		return []int{}
	}
	alloc := make([]int, n)
	total = max(total, 0)

	sum := new(big.Int)
	for _, inc := range incidents {
		sum.Add(sum, big.NewInt(int64(max(inc, 0))))
	}
	if sum.Sign() == 0 {
		for i := range alloc {
			if i < total || total >= n {
				alloc[i] = 1
			}
		}
		return alloc
	}

	// Floors of exact shares never sum past total, so spare cannot overflow.
	spare, raised := total, 0
	for i, inc := range incidents {
		alloc[i] = share(inc, total, sum)
		spare -= alloc[i]
		if alloc[i] < 1 {
			alloc[i] = 1
			raised++
		}
	}

	if raised > spare {
		asc := indexOrder(incidents, false)
		excess := reclaim(alloc, asc, raised-spare, 1)
		reclaim(alloc, asc, excess, 0)
		return alloc
	}

	if remainder := spare - raised; remainder > 0 {
		desc := indexOrder(incidents, true)
		each := remainder / n
		for i := range alloc {
			alloc[i] += each
		}
		for j := 0; j < remainder%n; j++ {
			alloc[desc[j]]++
		}
	}
	return alloc
}

// share is floor(inc*total/sum), computed without overflow.
func share(inc, total int, sum *big.Int) int {
	q := new(big.Int).Mul(big.NewInt(int64(max(inc, 0))), big.NewInt(int64(total)))
	return int(q.Quo(q, sum).Int64())
}

// reclaim takes one officer at a time from hotspots holding more than floor,
// walking order repeatedly until excess officers are returned or nothing is
// left to take. It returns the excess still outstanding.
func reclaim(alloc, order []int, excess, floor int) int {
	for excess > 0 {
		took := false
		for _, idx := range order {
			if excess == 0 {
				break
			}
			if alloc[idx] > floor {
				alloc[idx]--
				excess--
				took = true
			}
		}
		if !took {
			break
		}
	}
	return excess
}

// indexOrder returns indices sorted by incident count, ties in rank order.
func indexOrder(incidents []int, desc bool) []int {
	idx := make([]int, len(incidents))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		if desc {
			return incidents[idx[a]] > incidents[idx[b]]
		}
		return incidents[idx[a]] < incidents[idx[b]]
	})
	return idx
}
