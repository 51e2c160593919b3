package mat

import "fmt"

// Lauum computes the triangular product of an n-by-n factor with its own
// transpose, out of place, on flat row-major storage with explicit leading
// dimensions.
//
// For lower=true the lower triangle of L*L^T is written into the lower
// triangle of b, reading only the lower triangle of a. For lower=false the
// upper triangle of U*U^T is written into the upper triangle of b, reading
// only the upper triangle of a. Entries of b outside the named triangle are
// left untouched.
//
// a and b must not overlap.
func Lauum(n int, a []float64, lda int, b []float64, ldb int, lower bool) error {
	if n < 0 {
		return fmt.Errorf("lauum: negative dimension %d", n)
	}
	if lda < max(1, n) {
		return fmt.Errorf("lauum: lda %d < n %d", lda, n)
	}
	if ldb < max(1, n) {
		return fmt.Errorf("lauum: ldb %d < n %d", ldb, n)
	}
	if n == 0 {
		return nil
	}
	if len(a) < (n-1)*lda+n {
		return fmt.Errorf("lauum: a too short for n %d, lda %d", n, lda)
	}
	if len(b) < (n-1)*ldb+n {
		return fmt.Errorf("lauum: b too short for n %d, ldb %d", n, ldb)
	}
	if &a[0] == &b[0] {
		return fmt.Errorf("lauum: a and b must not overlap")
	}

	if lower {
		for i := range n {
			ai := a[i*lda:]
			bi := b[i*ldb:]
			for j := 0; j <= i; j++ {
				aj := a[j*lda:]
				var s float64
				for t := 0; t <= j; t++ {
					s += ai[t] * aj[t]
				}
				bi[j] = s
			}
		}
		return nil
	}
	for i := range n {
		ai := a[i*lda:]
		bi := b[i*ldb:]
		for j := i; j < n; j++ {
			aj := a[j*lda:]
			var s float64
			for t := j; t < n; t++ {
				s += ai[t] * aj[t]
			}
			bi[j] = s
		}
	}
	return nil
}
