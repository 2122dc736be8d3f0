package service

import (
	"crypto/rand"
	"time"
)

const (
	outTradeNoLength    = 24
	outRefundNoLength   = 32
	mchReferenceLength  = 28
	minReferenceDigits  = 4
	referenceDateLayout = "20060102"
)

// randomDigits returns n uniformly distributed decimal digits.
func randomDigits(n int) (string, error) {
	out := make([]byte, 0, n)
	buf := make([]byte, n)
	for len(out) < n {
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			// 250 is the largest multiple of 10 below 256
			if b >= 250 {
				continue
			}
			out = append(out, '0'+b%10)
			if len(out) == n {
				break
			}
		}
	}
	return string(out), nil
}

func referenceWithPrefix(prefix string, length int) (string, error) {
	n := length - len(prefix)
	if n < minReferenceDigits {
		n = minReferenceDigits
	}
	digits, err := randomDigits(n)
	if err != nil {
		return "", err
	}
	return prefix + digits, nil
}

func newOutTradeNo(now time.Time) (string, error) {
	return referenceWithPrefix(now.Format(referenceDateLayout), outTradeNoLength)
}

func newOutRefundNo(outTradeNo string) (string, error) {
	return referenceWithPrefix(outTradeNo, outRefundNoLength)
}

// newMchReference builds partner_trade_no and mch_billno values.
func newMchReference(mchID string, now time.Time) (string, error) {
	return referenceWithPrefix(mchID+now.Format(referenceDateLayout), mchReferenceLength)
}
