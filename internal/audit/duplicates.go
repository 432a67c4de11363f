package audit

import "sort"

type dupKey struct {
	merchant string
	invoice  string
	amount   string
}

// FindDuplicateInvoices groups records by their normalized identity key
// (merchant when included, invoice number, amount) and returns every
// member of every group of size two or more, tagged as a duplicate with
// the cluster size. Records whose key is unique are not emitted at all.
//
// Output order is a deterministic total order over the normalized key,
// independent of input order and of map iteration. Two runs over the
// same snapshot produce identical output.
func FindDuplicateInvoices(rows []Record, key DuplicateKey) []Finding {
	buckets := make(map[dupKey][]Record)
	for _, r := range rows {
		k := dupKey{
			invoice: NormalizeText(r[key.InvoiceColumn]),
			amount:  NormalizeAmount(r[key.AmountColumn]),
		}
		if key.IncludeMerchant {
			k.merchant = NormalizeText(r[key.MerchantColumn])
		}
		buckets[k] = append(buckets[k], r)
	}

	type entry struct {
		key     dupKey
		finding Finding
	}
	var dups []entry
	for k, group := range buckets {
		if len(group) < 2 {
			continue
		}
		for _, r := range group {
			dups = append(dups, entry{key: k, finding: Finding{
				Record:   r.Clone(),
				Reason:   ReasonDuplicate,
				DupCount: len(group),
			}})
		}
	}

	sort.SliceStable(dups, func(i, j int) bool {
		a, b := dups[i].key, dups[j].key
		if a.merchant != b.merchant {
			return a.merchant < b.merchant
		}
		if a.invoice != b.invoice {
			return a.invoice < b.invoice
		}
		return a.amount < b.amount
	})

	findings := make([]Finding, len(dups))
	for i, e := range dups {
		findings[i] = e.finding
	}
	return findings
}
