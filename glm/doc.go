/*
Package glm fits generalized linear models by iteratively reweighted least
squares, and multinomial logistic regression by quasi-Newton optimization.

The data are provided to the models as a statmodel.Dataset.  Binomial,
Poisson and Gaussian families are supported, with optional frequency
weights and offsets.
*/
package glm
