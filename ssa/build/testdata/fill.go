package main

func fill(a []int, n int) {
	for i := 0; i < n; i++ {
		a[i] = i * 2
	}
}
